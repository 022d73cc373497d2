package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/qninhdt/dnd-campaign/server/internal/agents"
	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// MockGenerator is a mock type for the Generator type
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, role, prompt
func (_m *MockGenerator) Generate(ctx context.Context, role campaign.Role, prompt string) (string, error) {
	ret := _m.Called(ctx, role, prompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, campaign.Role, string) string); ok {
		r0 = rf(ctx, role, prompt)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, campaign.Role, string) error); ok {
		r1 = rf(ctx, role, prompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockGenerator creates a MockGenerator bound to t and asserts its
// expectations on cleanup.
func NewMockGenerator(t interface {
	mock.TestingT
	Helper()
	Cleanup(func())
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ agents.Generator = (*MockGenerator)(nil)
