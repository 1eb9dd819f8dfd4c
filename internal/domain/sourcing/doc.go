// Package sourcing contains the Product Sourcing bounded context.
// This context pulls product data from external marketplaces and turns it into
// drafts that the catalog can create products from.
//
// Key concepts:
//   - Credential: OAuth token pair for the source platform's authenticated API
//   - SourceListing: one product as returned by a platform feed or product lookup
//   - SearchRequest / SearchResult: keyword, category and quality search simulated over feeds
//   - ProductDraft: normalized record handed to catalog creation
//   - Normalizer: price parsing, currency conversion and field clamping shared by all retrieval paths
//
// Design Pattern: Ports & Adapters
//   - Ports (CredentialRepository) are defined here in the domain layer
//   - Adapters (gorm, redis, in-memory) are in the infrastructure layer
package sourcing
