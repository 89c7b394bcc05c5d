// Package mocks provides test doubles for the sheets client.
package mocks

import (
	"context"

	sheets "github.com/sells-group/postcall-cli/pkg/sheets"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// EnsureSheet provides a mock function with given fields: ctx, title, header
func (_m *MockClient) EnsureSheet(ctx context.Context, title string, header []string) (*sheets.SheetHandle, error) {
	ret := _m.Called(ctx, title, header)

	if len(ret) == 0 {
		panic("no return value specified for EnsureSheet")
	}

	var r0 *sheets.SheetHandle
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) (*sheets.SheetHandle, error)); ok {
		return rf(ctx, title, header)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) *sheets.SheetHandle); ok {
		r0 = rf(ctx, title, header)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*sheets.SheetHandle)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, []string) error); ok {
		r1 = rf(ctx, title, header)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// AppendRow provides a mock function with given fields: ctx, handle, values
func (_m *MockClient) AppendRow(ctx context.Context, handle *sheets.SheetHandle, values []string) (*sheets.AppendResult, error) {
	ret := _m.Called(ctx, handle, values)

	if len(ret) == 0 {
		panic("no return value specified for AppendRow")
	}

	var r0 *sheets.AppendResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, *sheets.SheetHandle, []string) (*sheets.AppendResult, error)); ok {
		return rf(ctx, handle, values)
	}
	if rf, ok := ret.Get(0).(func(context.Context, *sheets.SheetHandle, []string) *sheets.AppendResult); ok {
		r0 = rf(ctx, handle, values)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*sheets.AppendResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, *sheets.SheetHandle, []string) error); ok {
		r1 = rf(ctx, handle, values)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
