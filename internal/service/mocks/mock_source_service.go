package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"studium/internal/model"
	"studium/internal/service"
)

type MockSourceService struct {
	mock.Mock
}

func (m *MockSourceService) List(ctx context.Context, ownerID string) ([]model.Source, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Source), args.Error(1)
}

func (m *MockSourceService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Source, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Source), args.Error(1)
}

func (m *MockSourceService) Create(ctx context.Context, in service.CreateSourceInput) (*model.Source, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Source), args.Error(1)
}

func (m *MockSourceService) Open(ctx context.Context, ownerID string, id uuid.UUID) (*service.SourceFile, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SourceFile), args.Error(1)
}
