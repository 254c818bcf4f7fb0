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

import (
	"sync"

	"github.com/ogl-crest/ultraverse/state/graph"
)

// StateChangeContext is the mutable bookkeeping spec.md §5 names as a
// shared resource guarded by a single mutex: primary keys, foreign
// keys, table renames, and auto-increment watermarks discovered while
// walking the state log. All mutating operations acquire the lock
// exclusively; reads take a snapshot copy so callers never hold the
// lock across I/O.
type StateChangeContext struct {
	mu sync.Mutex

	primaryKeys     map[string][]string // table -> ordered key columns
	foreignKeys     []graph.ForeignKey
	tableRenames    map[string]string // old name -> current name
	autoIncrements  map[string]uint64 // table -> highest seen value
}

// NewStateChangeContext builds an empty context.
func NewStateChangeContext() *StateChangeContext {
	return &StateChangeContext{
		primaryKeys:    map[string][]string{},
		tableRenames:   map[string]string{},
		autoIncrements: map[string]uint64{},
	}
}

// UpdatePrimaryKeys records table's key column list, replacing any
// prior entry.
func (c *StateChangeContext) UpdatePrimaryKeys(table string, columns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primaryKeys[table] = append([]string(nil), columns...)
}

// PrimaryKeys returns table's recorded key columns, or nil if unknown.
func (c *StateChangeContext) PrimaryKeys(table string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.primaryKeys[table]...)
}

// UpdateForeignKeys appends newly discovered foreign keys (e.g. parsed
// from a CREATE TABLE's REFERENCES clause while sweeping the state log).
func (c *StateChangeContext) UpdateForeignKeys(fks []graph.ForeignKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.foreignKeys = append(c.foreignKeys, fks...)
}

// ForeignKeys returns a snapshot of every foreign key recorded so far.
func (c *StateChangeContext) ForeignKeys() []graph.ForeignKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]graph.ForeignKey(nil), c.foreignKeys...)
}

// RenameTable records that oldName is now known as newName (a RENAME
// TABLE statement observed while sweeping the log), so later lookups
// by either name resolve to the current one.
func (c *StateChangeContext) RenameTable(oldName, newName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableRenames[oldName] = newName
}

// ResolveTable follows the rename chain to the current table name.
func (c *StateChangeContext) ResolveTable(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	visited := map[string]struct{}{}
	for {
		if _, seen := visited[name]; seen {
			return name
		}
		visited[name] = struct{}{}
		next, ok := c.tableRenames[name]
		if !ok {
			return name
		}
		name = next
	}
}

// ObserveAutoIncrement raises table's recorded auto-increment
// watermark to value if it's higher than what's already on record.
func (c *StateChangeContext) ObserveAutoIncrement(table string, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value > c.autoIncrements[table] {
		c.autoIncrements[table] = value
	}
}

// AutoIncrement returns table's current watermark.
func (c *StateChangeContext) AutoIncrement(table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoIncrements[table]
}
