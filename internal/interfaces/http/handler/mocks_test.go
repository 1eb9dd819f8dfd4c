package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	appsourcing "github.com/sourcing/backend/internal/application/sourcing"
	"github.com/sourcing/backend/internal/domain/sourcing"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, req sourcing.SearchRequest) (*sourcing.SearchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourcing.SearchResult), args.Error(1)
}

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, ref string) (*appsourcing.ImportResult, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsourcing.ImportResult), args.Error(1)
}

type MockCredentialManager struct {
	mock.Mock
}

func (m *MockCredentialManager) AuthorizeURL(redirectTarget string) (string, error) {
	args := m.Called(redirectTarget)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialManager) VerifyState(state string) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialManager) Exchange(ctx context.Context, code string) (*sourcing.Credential, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourcing.Credential), args.Error(1)
}

func (m *MockCredentialManager) Status(ctx context.Context) (*appsourcing.CredentialStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsourcing.CredentialStatus), args.Error(1)
}

func (m *MockCredentialManager) RevokeAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
