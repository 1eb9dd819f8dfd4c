// Package models contains GORM persistence models. They stay separate from the
// domain types so that the domain package carries no ORM tags; each model has
// ToDomain and a FromDomain constructor.
package models
