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

package statechange

import "github.com/ogl-crest/ultraverse/state/statelog"

// RangeComparisonMethod selects how RowCluster entries are tested for
// relevance to a rollback key range (spec.md §4.8).
type RangeComparisonMethod uint8

const (
	// RangeEqOnly tests only exact equality against a key range.
	RangeEqOnly RangeComparisonMethod = iota
	// RangeIntersect tests full interval intersection.
	RangeIntersect
)

// KeyColumnGroup is one designated key (single column, or an ordered
// list forming a composite key) plus its wildcard flag, as configured
// for a StateChangePlan.
type KeyColumnGroup struct {
	Columns  []string
	Wildcard bool
}

// ColumnAlias is one configured alias binding, resolved against the
// row cluster's AliasMap at makeCluster time.
type ColumnAlias struct {
	Column       string
	AliasValue   string
	RealColumn   string
	RealValue    string
}

// StateChangePlan is the complete set of inputs StateChanger's
// operations consume (spec.md §4.8).
type StateChangePlan struct {
	StateLogPath string
	StateLogName string

	DBName string
	DBHost string
	DBPort int
	DBUser string
	DBPass string

	KeyColumnGroups []KeyColumnGroup
	ColumnAliases   []ColumnAlias
	ImplicitTables  map[string]struct{}

	DumpPath string

	RollbackGIDs []statelog.GID
	UserQueries  map[statelog.GID]string // gid -> sql file path, prepended before that gid

	AutoRollbackRatio *float64
	StartGID          *statelog.GID
	EndGID            *statelog.GID
	ReplayFromGID     *statelog.GID
	SkipGIDs          map[statelog.GID]struct{}

	FullReplay          bool
	DropIntermediateDB  bool
	RangeComparison     RangeComparisonMethod
	ExecuteReplaceQuery bool
	DryRun              bool
	ReportPath          string

	ThreadCount int
}

// inSkipSet reports whether gid is in the plan's SkipGIDs set.
func (p *StateChangePlan) inSkipSet(gid statelog.GID) bool {
	if p.SkipGIDs == nil {
		return false
	}
	_, ok := p.SkipGIDs[gid]
	return ok
}

// inRollbackSet reports whether gid was requested for rollback.
func (p *StateChangePlan) inRollbackSet(gid statelog.GID) bool {
	for _, g := range p.RollbackGIDs {
		if g == gid {
			return true
		}
	}
	return false
}
