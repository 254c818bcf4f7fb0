// Copyright 2025 The Ultraverse Authors
// This file is part of Ultraverse.
//
// Ultraverse is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultraverse is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ultraverse. If not, see <http://www.gnu.org/licenses/>.

// Package mocks holds hand-maintained go.uber.org/mock-shaped doubles
// for the interfaces statechange drives (DbHandle) so its tests can
// assert on call sequences without a live server. Written in mockgen's
// standard output shape rather than generated, since the interfaces
// here are small and change rarely.
package mocks

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/ogl-crest/ultraverse/mariadb/dbhandle"
)

// MockDbHandle is a mock of the statechange.DbHandle interface.
type MockDbHandle struct {
	ctrl     *gomock.Controller
	recorder *MockDbHandleMockRecorder
}

// MockDbHandleMockRecorder is the mock recorder for MockDbHandle.
type MockDbHandleMockRecorder struct {
	mock *MockDbHandle
}

// NewMockDbHandle creates a new mock instance.
func NewMockDbHandle(ctrl *gomock.Controller) *MockDbHandle {
	mock := &MockDbHandle{ctrl: ctrl}
	mock.recorder = &MockDbHandleMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDbHandle) EXPECT() *MockDbHandleMockRecorder {
	return m.recorder
}

// Execute mocks base method.
func (m *MockDbHandle) Execute(ctx context.Context, stmt string) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Execute", ctx, stmt)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Execute indicates an expected call of Execute.
func (mr *MockDbHandleMockRecorder) Execute(ctx, stmt interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Execute", reflect.TypeOf((*MockDbHandle)(nil).Execute), ctx, stmt)
}

// FetchRows mocks base method.
func (m *MockDbHandle) FetchRows(ctx context.Context, query string) ([]dbhandle.Row, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchRows", ctx, query)
	ret0, _ := ret[0].([]dbhandle.Row)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchRows indicates an expected call of FetchRows.
func (mr *MockDbHandleMockRecorder) FetchRows(ctx, query interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchRows", reflect.TypeOf((*MockDbHandle)(nil).FetchRows), ctx, query)
}

// ConsumeMultiResult mocks base method.
func (m *MockDbHandle) ConsumeMultiResult(ctx context.Context, stmt string) ([][]dbhandle.Row, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ConsumeMultiResult", ctx, stmt)
	ret0, _ := ret[0].([][]dbhandle.Row)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ConsumeMultiResult indicates an expected call of ConsumeMultiResult.
func (mr *MockDbHandleMockRecorder) ConsumeMultiResult(ctx, stmt interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ConsumeMultiResult", reflect.TypeOf((*MockDbHandle)(nil).ConsumeMultiResult), ctx, stmt)
}

// SetAutocommit mocks base method.
func (m *MockDbHandle) SetAutocommit(ctx context.Context, on bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetAutocommit", ctx, on)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetAutocommit indicates an expected call of SetAutocommit.
func (mr *MockDbHandleMockRecorder) SetAutocommit(ctx, on interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetAutocommit", reflect.TypeOf((*MockDbHandle)(nil).SetAutocommit), ctx, on)
}

// Close mocks base method.
func (m *MockDbHandle) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockDbHandleMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockDbHandle)(nil).Close))
}
