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

package statelog

import (
	"os"

	"github.com/pkg/errors"
)

// Encodable is implemented by every persisted message type spec.md §6
// lists (Query, Transaction, StateHash, StateItem, RowCluster,
// ColumnDependencyGraph, TableDependencyGraph).
type Encodable interface {
	MarshalUltra() []byte
}

// AuxSuffix names one of the state log's companion files (spec.md
// §4.3): cluster, tables, columns. The GID index and checkpoint lock
// have their own dedicated helpers (gidindex.go, writer.go) since they
// aren't a single opaque Encodable blob.
type AuxSuffix string

const (
	AuxCluster AuxSuffix = "ultcluster"
	AuxTables  AuxSuffix = "ulttables"
	AuxColumns AuxSuffix = "ultcolumns"
)

func auxPath(dir, name string, suffix AuxSuffix) string {
	return dir + "/" + name + "." + string(suffix)
}

// WriteAux persists v's encoded form as the named state log's aux file
// for suffix, overwriting any previous contents.
func WriteAux(dir, name string, suffix AuxSuffix, v Encodable) error {
	path := auxPath(dir, name, suffix)
	if err := os.WriteFile(path, v.MarshalUltra(), 0o644); err != nil {
		return errors.Wrapf(err, "statelog: write aux file %s", path)
	}
	return nil
}

// ReadAux loads the named state log's aux file for suffix into dst via
// dst.UnmarshalUltra.
func ReadAux(dir, name string, suffix AuxSuffix, dst interface{ UnmarshalUltra([]byte) error }) error {
	path := auxPath(dir, name, suffix)
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "statelog: read aux file %s", path)
	}
	return dst.UnmarshalUltra(raw)
}
