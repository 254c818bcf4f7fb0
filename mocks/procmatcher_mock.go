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

package mocks

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/procmatcher"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// MockProcMatcher is a mock of the procmatcher.ProcMatcher interface.
type MockProcMatcher struct {
	ctrl     *gomock.Controller
	recorder *MockProcMatcherMockRecorder
}

// MockProcMatcherMockRecorder is the mock recorder for MockProcMatcher.
type MockProcMatcherMockRecorder struct {
	mock *MockProcMatcher
}

// NewMockProcMatcher creates a new mock instance.
func NewMockProcMatcher(ctrl *gomock.Controller) *MockProcMatcher {
	mock := &MockProcMatcher{ctrl: ctrl}
	mock.recorder = &MockProcMatcherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProcMatcher) EXPECT() *MockProcMatcherMockRecorder {
	return m.recorder
}

// Bind mocks base method.
func (m *MockProcMatcher) Bind(call procmatcher.ProcCall) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Bind", call)
	ret0, _ := ret[0].(error)
	return ret0
}

// Bind indicates an expected call of Bind.
func (mr *MockProcMatcherMockRecorder) Bind(call interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Bind", reflect.TypeOf((*MockProcMatcher)(nil).Bind), call)
}

// MatchForward mocks base method.
func (m *MockProcMatcher) MatchForward(stmt string, startIdx int) int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MatchForward", stmt, startIdx)
	ret0, _ := ret[0].(int)
	return ret0
}

// MatchForward indicates an expected call of MatchForward.
func (mr *MockProcMatcherMockRecorder) MatchForward(stmt, startIdx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MatchForward", reflect.TypeOf((*MockProcMatcher)(nil).MatchForward), stmt, startIdx)
}

// AsQuery mocks base method.
func (m *MockProcMatcher) AsQuery(idx int, call procmatcher.ProcCall, keyColumns []string) ([]*statelog.Query, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AsQuery", idx, call, keyColumns)
	ret0, _ := ret[0].([]*statelog.Query)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AsQuery indicates an expected call of AsQuery.
func (mr *MockProcMatcherMockRecorder) AsQuery(idx, call, keyColumns interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AsQuery", reflect.TypeOf((*MockProcMatcher)(nil).AsQuery), idx, call, keyColumns)
}

// VariableSet mocks base method.
func (m *MockProcMatcher) VariableSet(call procmatcher.ProcCall) []*predicate.StateItem {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VariableSet", call)
	ret0, _ := ret[0].([]*predicate.StateItem)
	return ret0
}

// VariableSet indicates an expected call of VariableSet.
func (mr *MockProcMatcherMockRecorder) VariableSet(call interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VariableSet", reflect.TypeOf((*MockProcMatcher)(nil).VariableSet), call)
}
