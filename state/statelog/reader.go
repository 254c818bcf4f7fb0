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
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Reader walks a state log's primary file sequentially, or seeks to an
// arbitrary offset / GID via the companion index, per spec.md §4.3's
// reader contract.
type Reader struct {
	log  *zap.Logger
	f    *os.File
	pos  int64
	gidx *GIDIndexReader // nil until SeekGID is first used
	dir  string
	name string
}

// OpenReader opens the state log named name under dir for sequential
// or random-access read.
func OpenReader(dir, name string, log *zap.Logger) (*Reader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(logPath(dir, name))
	if err != nil {
		return nil, errors.Wrap(err, "statelog: open state log for read")
	}
	return &Reader{log: log.Named("StateLogReader"), f: f, dir: dir, name: name}, nil
}

// Pos reports the reader's current byte offset into the state log.
func (r *Reader) Pos() int64 { return r.pos }

// NextHeader reads and returns the next TransactionHeader without
// materializing its body, and reports the headerOffset it started at
// (needed by NextTransaction/SkipTransaction's next_pos math). Returns
// io.EOF at end of file.
func (r *Reader) NextHeader() (TransactionHeader, int64, error) {
	headerOffset := r.pos
	var raw [headerRecordSize]byte
	if _, err := io.ReadFull(r.f, raw[:]); err != nil {
		if err == io.EOF {
			return TransactionHeader{}, headerOffset, io.EOF
		}
		return TransactionHeader{}, headerOffset, errors.Wrap(err, "statelog: read transaction header")
	}
	h := TransactionHeader{
		Timestamp:    binary.LittleEndian.Uint64(raw[0:8]),
		GID:          GID(binary.LittleEndian.Uint64(raw[8:16])),
		XID:          binary.LittleEndian.Uint64(raw[16:24]),
		IsSuccessful: raw[24] != 0,
		Flags:        raw[25],
		NextPos:      binary.LittleEndian.Uint64(raw[26:34]),
	}
	r.pos += headerRecordSize
	if h.NextPos < uint64(r.pos) {
		return TransactionHeader{}, headerOffset, errors.Errorf("statelog: corrupt header at offset %d: next_pos %d precedes body start %d", headerOffset, h.NextPos, r.pos)
	}
	h.BodyLength = uint32(h.NextPos - uint64(r.pos))
	return h, headerOffset, nil
}

// NextTransaction reads one full Transaction (header + body). A body
// that fails to parse is logged as a warning and nil is returned for
// the Transaction while the stream is still advanced to next_pos, per
// spec.md §4.3/§7's "Invariant" error policy (warn, skip, continue).
func (r *Reader) NextTransaction() (*Transaction, error) {
	header, headerOffset, err := r.NextHeader()
	if err != nil {
		return nil, err
	}
	body := make([]byte, header.BodyLength)
	if _, err := io.ReadFull(r.f, body); err != nil {
		return nil, errors.Wrapf(err, "statelog: read transaction body at offset %d", headerOffset)
	}
	r.pos = int64(header.NextPos)

	tx := &Transaction{Header: header}
	if err := tx.UnmarshalUltra(body); err != nil {
		r.log.Warn("statelog: dropping unparseable transaction body",
			zap.Int64("offset", headerOffset), zap.Error(err))
		return nil, nil
	}
	tx.Header = header
	return tx, nil
}

// SkipTransaction advances past the next transaction's body without
// decoding it, using only NextHeader's next_pos.
func (r *Reader) SkipTransaction() (TransactionHeader, error) {
	header, _, err := r.NextHeader()
	if err != nil {
		return TransactionHeader{}, err
	}
	if _, err := r.f.Seek(int64(header.NextPos), io.SeekStart); err != nil {
		return TransactionHeader{}, errors.Wrap(err, "statelog: seek past transaction body")
	}
	r.pos = int64(header.NextPos)
	return header, nil
}

// Seek repositions the reader at an arbitrary byte offset (typically
// one returned by SeekGID or a TransactionHeader.NextPos from a prior
// read).
func (r *Reader) Seek(offset int64) error {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "statelog: seek")
	}
	r.pos = offset
	return nil
}

// SeekGID positions the reader at the start of gid's TransactionHeader
// using the mmap-backed GID index (spec.md §8's "index agreement"
// property), opening the index lazily on first use.
func (r *Reader) SeekGID(gid GID) error {
	if r.gidx == nil {
		gidx, err := OpenGIDIndexReader(r.dir, r.name)
		if err != nil {
			return err
		}
		r.gidx = gidx
	}
	offset, err := r.gidx.OffsetOf(gid)
	if err != nil {
		return err
	}
	return r.Seek(int64(offset))
}

// Close releases the state log file and, if opened, the GID index.
func (r *Reader) Close() error {
	var err error
	if r.gidx != nil {
		err = r.gidx.Close()
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
