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

package cluster

import (
	"strings"

	"github.com/ogl-crest/ultraverse/state/graph"
)

// ResolveForeignKey implements spec.md §4.6's resolveForeignKey: chase
// fk references to their ultimate endpoint, falling back to an
// "_id" / implicit-table-name probe, and finally to the normalized
// input unchanged. Terminates in at most len(fks) steps for an
// acyclic fk set (spec.md §8's "FK resolution terminates" property) by
// tracking visited table.column pairs and stopping the chase on a
// repeat instead of looping forever on a cyclic (malformed) fk set.
func ResolveForeignKey(exprName string, fks []graph.ForeignKey, implicitTables map[string]struct{}) string {
	cur := strings.ToLower(strings.TrimSpace(exprName))
	visited := map[string]struct{}{}
	for {
		if _, seen := visited[cur]; seen {
			return cur
		}
		visited[cur] = struct{}{}

		table, column, ok := strings.Cut(cur, ".")
		if !ok {
			return cur
		}
		if next, found := chaseOnce(table, column, fks); found {
			cur = next
			continue
		}
		if implicitTables != nil && strings.HasSuffix(column, "_id") {
			base := strings.TrimSuffix(column, "_id")
			for _, candidate := range []string{base, base + "s", base + "es"} {
				if _, ok := implicitTables[candidate]; ok {
					return candidate + ".id"
				}
			}
		}
		return cur
	}
}

func chaseOnce(table, column string, fks []graph.ForeignKey) (string, bool) {
	for _, fk := range fks {
		if strings.EqualFold(fk.FromTable, table) && strings.EqualFold(fk.FromColumn, column) {
			return strings.ToLower(fk.ToTable) + "." + strings.ToLower(fk.ToColumn), true
		}
	}
	return "", false
}
