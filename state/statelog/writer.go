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
	"encoding/binary"
	"os"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// headerRecordSize is the fixed on-disk TransactionHeader layout from
// spec.md §3/§6: timestamp(8) + gid(8) + xid(8) + is_successful(1) +
// flags(1) + next_pos(8).
const headerRecordSize = 8 + 8 + 8 + 1 + 1 + 8

func logPath(dir, name string) string { return dir + "/" + name + ".ultstatelog" }
func checkpointPath(dir, name string) string { return dir + "/" + name + ".ultchkpoint" }

// Writer appends Transaction records to a state log's primary file,
// maintaining the companion GID index as it goes and holding an
// exclusive flock on the checkpoint file for the lifetime of the
// writer, so a second statelogd process started against the same
// state-log name fails fast instead of corrupting the log (SPEC_FULL.md
// §4.3).
type Writer struct {
	f     *os.File
	index *GIDIndexWriter
	lock  *flock.Flock
	pos   int64
}

// OpenWriter opens (creating if needed) the state log named name under
// dir for append, and takes the checkpoint lock.
func OpenWriter(dir, name string) (*Writer, error) {
	lock := flock.New(checkpointPath(dir, name))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "statelog: acquire checkpoint lock")
	}
	if !locked {
		return nil, errors.Errorf("statelog: %q is locked by another writer", name)
	}

	f, err := os.OpenFile(logPath(dir, name), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, errors.Wrap(err, "statelog: open state log for write")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, errors.Wrap(err, "statelog: stat state log")
	}
	idx, err := OpenGIDIndexWriter(dir, name)
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, err
	}
	return &Writer{f: f, index: idx, lock: lock, pos: info.Size()}, nil
}

// Append serializes tx's body, stamps Header.NextPos, writes the fixed
// header followed by the body, and records the header's offset in the
// GID index. GIDs are expected to arrive in strictly increasing order
// (spec.md §3 invariant 1); Append does not itself assign GIDs, it only
// persists whatever the caller already assigned (the statelogd writer
// thread — see SPEC_FULL.md §5 — is the one place that must honor
// commit-order-not-submission-order).
func (w *Writer) Append(tx *Transaction) error {
	body := tx.MarshalUltra()
	headerOffset := w.pos
	tx.Header.NextPos = uint64(headerOffset) + headerRecordSize + uint64(len(body))
	tx.Header.BodyLength = uint32(len(body))
	tx.Header.QueryCount = uint32(len(tx.Queries))

	var hdr [headerRecordSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], tx.Header.Timestamp)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(tx.Header.GID))
	binary.LittleEndian.PutUint64(hdr[16:24], tx.Header.XID)
	if tx.Header.IsSuccessful {
		hdr[24] = 1
	}
	hdr[25] = tx.Header.Flags
	binary.LittleEndian.PutUint64(hdr[26:34], tx.Header.NextPos)

	if _, err := w.f.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "statelog: write transaction header")
	}
	if _, err := w.f.Write(body); err != nil {
		return errors.Wrap(err, "statelog: write transaction body")
	}
	w.pos = int64(tx.Header.NextPos)

	if err := w.index.Write(GID(tx.Header.GID), uint64(headerOffset)); err != nil {
		return err
	}
	return nil
}

// Sync flushes the state log and its GID index to stable storage.
func (w *Writer) Sync() error {
	if err := w.f.Sync(); err != nil {
		return errors.Wrap(err, "statelog: sync state log")
	}
	return w.index.Sync()
}

// Close flushes and releases the state log, its index, and the
// checkpoint lock.
func (w *Writer) Close() error {
	err := w.Sync()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if cerr := w.index.Close(); err == nil {
		err = cerr
	}
	if uerr := w.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
