package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"studium/internal/model"
)

type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) Create(ctx context.Context, src *model.Source) (*model.Source, error) {
	args := m.Called(ctx, src)
	if f, ok := args.Get(0).(func(context.Context, *model.Source) *model.Source); ok {
		return f(ctx, src), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Source), args.Error(1)
}

func (m *MockSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Source), args.Error(1)
}

func (m *MockSourceRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Source, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Source), args.Error(1)
}
