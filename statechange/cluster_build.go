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
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/ogl-crest/ultraverse/state/cluster"
	"github.com/ogl-crest/ultraverse/state/graph"
	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// MakeCluster implements spec.md §4.8's makeCluster(): a single
// forward sweep of the state log that builds the column dependency
// graph, table dependency graph, and row cluster (registering every
// configured key/composite-key/alias up front), then persists all
// three as the state log's aux files. It runs no database operation.
func (sc *StateChanger) MakeCluster(plan *StateChangePlan) error {
	rc := cluster.New()
	cg := graph.New()
	tg := graph.NewTableGraph()

	for _, kg := range plan.KeyColumnGroups {
		if len(kg.Columns) == 1 {
			rc.AddKey(kg.Columns[0])
			rc.SetWildcard(kg.Columns[0], kg.Wildcard)
		} else {
			rc.AddCompositeKey(kg.Columns)
		}
	}
	for _, a := range plan.ColumnAliases {
		rc.Aliases().AddAlias(a.Column,
			predicate.NewLeaf(a.Column, predicate.FnEq, predicate.StringScalar(a.AliasValue)),
			predicate.NewLeaf(a.RealColumn, predicate.FnEq, predicate.StringScalar(a.RealValue)))
	}

	reader, err := statelog.OpenReader(plan.StateLogPath, plan.StateLogName, sc.log)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		tx, err := reader.NextTransaction()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if tx == nil {
			continue // unparseable body, already logged and skipped by the reader
		}
		sc.foldTransaction(rc, cg, tg, plan, tx)
	}

	for _, kg := range plan.KeyColumnGroups {
		if len(kg.Columns) == 1 {
			if err := rc.MergeCluster(kg.Columns[0]); err != nil {
				return errors.Wrap(err, "statechange: merge row cluster")
			}
			continue
		}
		id := rc.AddCompositeKey(kg.Columns)
		rc.MergeComposite(id)
	}

	if err := statelog.WriteAux(plan.StateLogPath, plan.StateLogName, statelog.AuxCluster, rc); err != nil {
		return err
	}
	if err := statelog.WriteAux(plan.StateLogPath, plan.StateLogName, statelog.AuxColumns, cg); err != nil {
		return err
	}
	if err := statelog.WriteAux(plan.StateLogPath, plan.StateLogName, statelog.AuxTables, tg); err != nil {
		return err
	}
	return nil
}

func (sc *StateChanger) foldTransaction(rc *cluster.RowCluster, cg *graph.ColumnDependencyGraph, tg *graph.TableDependencyGraph, plan *StateChangePlan, tx *statelog.Transaction) {
	fks := sc.ctx.ForeignKeys()
	for _, q := range tx.Queries {
		if len(q.ReadColumns) > 0 {
			cg.Add(q.ReadColumns, graph.AccessRead, fks)
		}
		if len(q.WriteColumns) > 0 {
			cg.Add(q.WriteColumns, graph.AccessWrite, fks)
		}
		tg.AddRelationship(q.ReadColumns, q.WriteColumns)

		flattened := flattenQuery(q)
		for _, kg := range plan.KeyColumnGroups {
			if len(kg.Columns) == 1 {
				col := kg.Columns[0]
				for _, leaf := range flattened {
					resolved, item := resolveLeaf(leaf, fks, rc.Aliases(), plan.ImplicitTables)
					if resolved == col {
						rc.AddKeyRange(col, item.MakeRange2(), tx.Header.GID)
					}
				}
				continue
			}
			if ranges, ok := rangesForComposite(kg.Columns, flattened, fks, rc.Aliases(), plan.ImplicitTables); ok {
				rc.AddCompositeKeyRange(kg.Columns, ranges, tx.Header.GID)
			}
		}
	}
}

func flattenQuery(q *statelog.Query) []*predicate.StateItem {
	var out []*predicate.StateItem
	for _, it := range q.ReadSet {
		out = append(out, it.Flatten()...)
	}
	for _, it := range q.WriteSet {
		out = append(out, it.Flatten()...)
	}
	return out
}

// resolveLeaf mirrors state/cluster's unexported resolveLeafColumn
// using only that package's exported building blocks
// (ResolveForeignKey, AliasMap.Resolve): fk chase first, then alias
// lookup on the fk-resolved name, returning the item whose range
// should be tested/stored (the real item when an alias fired).
func resolveLeaf(leaf *predicate.StateItem, fks []graph.ForeignKey, aliases *cluster.AliasMap, implicitTables map[string]struct{}) (string, *predicate.StateItem) {
	resolved := cluster.ResolveForeignKey(leaf.Name, fks, implicitTables)
	if aliases == nil || len(leaf.DataList) == 0 {
		return resolved, leaf
	}
	if real, ok := aliases.Resolve(resolved, leaf.DataList[0]); ok {
		return cluster.ResolveForeignKey(real.Name, fks, implicitTables), real
	}
	return resolved, leaf
}

// rangesForComposite looks up, for each of cols (in cols' own order,
// not the normalized/sorted order RowCluster stores composite keys
// under internally), the flattened leaf resolving to that column and
// returns its range; a column with no matching leaf gets a wildcard
// range rather than excluding the transaction outright. ok is false
// only when not a single component column was observed at all.
func rangesForComposite(cols []string, flattened []*predicate.StateItem, fks []graph.ForeignKey, aliases *cluster.AliasMap, implicitTables map[string]struct{}) ([]*predicate.StateRange, bool) {
	ranges := make([]*predicate.StateRange, len(cols))
	found := make([]bool, len(cols))
	for _, leaf := range flattened {
		resolved, item := resolveLeaf(leaf, fks, aliases, implicitTables)
		for i, col := range cols {
			if resolved == normalizeColumnName(col) {
				ranges[i] = item.MakeRange2()
				found[i] = true
			}
		}
	}
	any := false
	for i := range ranges {
		if found[i] {
			any = true
		} else {
			ranges[i] = predicate.NewWildcardRange()
		}
	}
	return ranges, any
}

func normalizeColumnName(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
