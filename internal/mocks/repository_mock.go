package mocks

import (
	"context"

	"soul-server/internal/repository"
	"soul-server/internal/session"

	"github.com/stretchr/testify/mock"
)

// MockSnapshotRepository is a mock type for the repository.SnapshotRepository type
type MockSnapshotRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, snapshot
func (_m *MockSnapshotRepository) Save(ctx context.Context, snapshot session.Snapshot) error {
	ret := _m.Called(ctx, snapshot)

	if rf, ok := ret.Get(0).(func(context.Context, session.Snapshot) error); ok {
		return rf(ctx, snapshot)
	}
	return ret.Error(0)
}

// Load provides a mock function with given fields: ctx, key
func (_m *MockSnapshotRepository) Load(ctx context.Context, key string) (session.Snapshot, bool, error) {
	ret := _m.Called(ctx, key)

	var r0 session.Snapshot
	if rf, ok := ret.Get(0).(func(context.Context, string) session.Snapshot); ok {
		r0 = rf(ctx, key)
	} else {
		r0 = ret.Get(0).(session.Snapshot)
	}

	return r0, ret.Bool(1), ret.Error(2)
}

// Delete provides a mock function with given fields: ctx, key
func (_m *MockSnapshotRepository) Delete(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)
	return ret.Error(0)
}

// NewMockSnapshotRepository creates a new instance of MockSnapshotRepository.
func NewMockSnapshotRepository(t mockConstructorTestingT) *MockSnapshotRepository {
	m := &MockSnapshotRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockResultRepository is a mock type for the repository.ResultRepository type
type MockResultRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, result
func (_m *MockResultRepository) Save(ctx context.Context, result *repository.ExplorationResult) error {
	ret := _m.Called(ctx, result)

	if rf, ok := ret.Get(0).(func(context.Context, *repository.ExplorationResult) error); ok {
		return rf(ctx, result)
	}
	return ret.Error(0)
}

// NewMockResultRepository creates a new instance of MockResultRepository.
func NewMockResultRepository(t mockConstructorTestingT) *MockResultRepository {
	m := &MockResultRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
