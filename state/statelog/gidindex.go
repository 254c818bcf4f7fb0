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
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

const gidIndexEntrySize = 8

// indexPath returns the conventional "<name>.ultindex" path inside dir.
func indexPath(dir, name string) string {
	return dir + "/" + name + ".ultindex"
}

// GIDIndexWriter is an append/random-write GID -> byte-offset table, one
// fixed 8-byte little-endian slot per GID, grown with ftruncate the way
// a sparse file is grown before a random-offset write lands in it.
type GIDIndexWriter struct {
	f     *os.File
	fsize int64
}

// OpenGIDIndexWriter creates (or reopens for append) the index file for
// the named state log under dir.
func OpenGIDIndexWriter(dir, name string) (*GIDIndexWriter, error) {
	f, err := os.OpenFile(indexPath(dir, name), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "statelog: open gid index for write")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statelog: stat gid index")
	}
	return &GIDIndexWriter{f: f, fsize: info.Size()}, nil
}

func (w *GIDIndexWriter) needsResize(gid GID) bool {
	return w.fsize < int64(gid)*gidIndexEntrySize
}

// Write records offset as the byte position of gid's Transaction record,
// growing the file first if gid's slot doesn't exist yet.
func (w *GIDIndexWriter) Write(gid GID, offset uint64) error {
	if w.needsResize(gid) {
		size := int64(gid) * gidIndexEntrySize
		if err := w.f.Truncate(size); err != nil {
			return errors.Wrap(err, "statelog: grow gid index")
		}
		w.fsize = size
	}
	var buf [gidIndexEntrySize]byte
	binary.LittleEndian.PutUint64(buf[:], offset)
	if _, err := w.f.WriteAt(buf[:], int64(gid)*gidIndexEntrySize); err != nil {
		return errors.Wrap(err, "statelog: write gid index entry")
	}
	if end := int64(gid)*gidIndexEntrySize + gidIndexEntrySize; end > w.fsize {
		w.fsize = end
	}
	return nil
}

// Append writes offset at the next sequential GID slot (gid ==
// fsize/8), used by a writer that's emitting GIDs in strict order and
// doesn't need a specific random-access gid.
func (w *GIDIndexWriter) Append(offset uint64) error {
	return w.Write(GID(w.fsize/gidIndexEntrySize), offset)
}

// Sync flushes the index file to stable storage.
func (w *GIDIndexWriter) Sync() error {
	return w.f.Sync()
}

// Close syncs and closes the index file.
func (w *GIDIndexWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "statelog: sync gid index on close")
	}
	return w.f.Close()
}

// GIDIndexReader is a read-only, mmap-backed view of a GID index file.
// Per the format this is grounded on, an empty index file is always a
// usage error (there is no such thing as a state log with zero
// committed transactions worth indexing) rather than a valid empty
// index, so Open rejects it outright instead of returning a reader
// that can never resolve any GID.
type GIDIndexReader struct {
	f      *os.File
	region mmap.MMap
}

// OpenGIDIndexReader mmaps the named state log's GID index read-only.
func OpenGIDIndexReader(dir, name string) (*GIDIndexReader, error) {
	f, err := os.Open(indexPath(dir, name))
	if err != nil {
		return nil, errors.Wrap(err, "statelog: open gid index for read")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statelog: stat gid index")
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("statelog: gid index %q is empty", indexPath(dir, name))
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statelog: mmap gid index")
	}
	return &GIDIndexReader{f: f, region: region}, nil
}

// Len reports how many GID slots the index currently holds.
func (r *GIDIndexReader) Len() int {
	return len(r.region) / gidIndexEntrySize
}

// OffsetOf returns the byte offset of gid's Transaction record in the
// state log, or an error if gid is out of range.
func (r *GIDIndexReader) OffsetOf(gid GID) (uint64, error) {
	at := int(gid) * gidIndexEntrySize
	if at < 0 || at+gidIndexEntrySize > len(r.region) {
		return 0, fmt.Errorf("statelog: gid %d out of range (index has %d entries)", gid, r.Len())
	}
	return binary.LittleEndian.Uint64(r.region[at : at+gidIndexEntrySize]), nil
}

// Close unmaps and closes the index file.
func (r *GIDIndexReader) Close() error {
	if err := r.region.Unmap(); err != nil {
		r.f.Close()
		return errors.Wrap(err, "statelog: unmap gid index")
	}
	return r.f.Close()
}
