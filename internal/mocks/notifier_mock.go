package mocks

import (
	"context"

	"soul-server/internal/session"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the service.Notifier type
type MockNotifier struct {
	mock.Mock
}

// NotifyCompleted provides a mock function with given fields: ctx, snapshot, ending
func (_m *MockNotifier) NotifyCompleted(ctx context.Context, snapshot session.Snapshot, ending string) error {
	ret := _m.Called(ctx, snapshot, ending)

	if rf, ok := ret.Get(0).(func(context.Context, session.Snapshot, string) error); ok {
		return rf(ctx, snapshot, ending)
	}
	return ret.Error(0)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t mockConstructorTestingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
