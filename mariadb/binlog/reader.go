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

package binlog

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// pollInterval is how long SequentialBinlogReader sleeps between
// index-file rechecks once it has caught up to the last known segment.
const pollInterval = 5 * time.Second

// SequentialBinlogReader walks every segment an index file names, in
// order, decoding each with a shared Decoder and transparently
// rotating to the next segment at EOF. Once it reaches the newest
// known segment it polls the index file for newly-rotated-in segments
// (tail -f style), unless polling has been disabled — a one-shot batch
// read wants EOF to mean "done", not "wait forever".
type SequentialBinlogReader struct {
	log *zap.Logger

	basePath  string
	indexFile string

	decoder *Decoder

	logFileList  []string
	currentIndex int

	file *os.File
	br   *bufio.Reader

	pollDisabled bool
	terminate    atomic.Bool
}

// NewSequentialBinlogReader opens indexFile (resolved relative to
// basePath) and positions at the first segment it names.
func NewSequentialBinlogReader(basePath, indexFile string, log *zap.Logger) (*SequentialBinlogReader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &SequentialBinlogReader{
		log:       log.Named("BinaryLogSeqReader"),
		basePath:  basePath,
		indexFile: indexFile,
		decoder:   NewDecoder(log),
	}
	if err := r.updateIndex(); err != nil {
		return nil, err
	}
	if len(r.logFileList) > 0 {
		if err := r.openLog(r.logFileList[0]); err != nil {
			return nil, err
		}
		r.currentIndex = 0
	}
	return r, nil
}

// SetPollDisabled controls whether Next blocks waiting for new
// segments at EOF (false, the statelogd daemon's tailing mode) or
// returns io.EOF immediately (true, statelogd's one-shot mode).
func (r *SequentialBinlogReader) SetPollDisabled(v bool) { r.pollDisabled = v }

// Terminate asks a blocked Next to return at the next poll tick. Safe
// to call from another goroutine; mirrors the original's
// release-store / acquire-load pairing around a plain atomic flag.
func (r *SequentialBinlogReader) Terminate() { r.terminate.Store(true) }

func (r *SequentialBinlogReader) terminated() bool { return r.terminate.Load() }

// Next returns the next decoded event in segment order, polling for
// newly-rotated-in segments when it catches up to the newest known
// one and polling isn't disabled.
func (r *SequentialBinlogReader) Next() (*Event, error) {
	for !r.terminated() {
		if r.file == nil {
			return nil, io.EOF
		}
		ev, err := r.decoder.Next(r.br)
		if err == nil {
			return ev, nil
		}
		if err != io.EOF {
			return nil, err
		}

		more, pollErr := r.pollNext()
		if pollErr != nil {
			return nil, pollErr
		}
		if more {
			continue
		}
		if r.pollDisabled {
			return nil, io.EOF
		}
		time.Sleep(pollInterval)
	}
	return nil, io.EOF
}

// pollNext re-reads the index file; if a new segment has appeared
// after the current one it rotates onto it (returning true), else it
// reopens the current segment at its last known offset so a
// concurrent writer's appended bytes become visible (returning false).
func (r *SequentialBinlogReader) pollNext() (bool, error) {
	if err := r.updateIndex(); err != nil {
		return false, err
	}
	if r.currentIndex+1 < len(r.logFileList) {
		r.currentIndex++
		if err := r.openLog(r.logFileList[r.currentIndex]); err != nil {
			return false, err
		}
		return true, nil
	}

	pos, err := r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, errors.Wrap(err, "binlog: tell current segment offset")
	}
	if err := r.reopenAt(pos); err != nil {
		return false, err
	}
	return false, nil
}

func (r *SequentialBinlogReader) updateIndex() error {
	path := filepath.Join(r.basePath, r.indexFile)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "binlog: open index file %s", path)
	}
	defer f.Close()

	var list []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "binlog: scan index file")
	}
	r.logFileList = list
	return nil
}

func (r *SequentialBinlogReader) openLog(relPath string) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	path := filepath.Join(r.basePath, relPath)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "binlog: open segment %s", path)
	}
	r.file = f
	r.br = bufio.NewReaderSize(f, 256*1024)
	r.decoder.Reset()
	return nil
}

// reopenAt reopens the current segment and seeks to pos, preserving
// decoder state (FDE, table map registry) across the reopen: the
// underlying *os.File changed but it's still the same logical segment.
func (r *SequentialBinlogReader) reopenAt(pos int64) error {
	path := filepath.Join(r.basePath, r.logFileList[r.currentIndex])
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "binlog: reopen segment %s", path)
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		f.Close()
		return errors.Wrap(err, "binlog: seek reopened segment")
	}
	if r.file != nil {
		r.file.Close()
	}
	r.file = f
	r.br = bufio.NewReaderSize(f, 256*1024)
	return nil
}

// Close releases the currently open segment file.
func (r *SequentialBinlogReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// CurrentSegment returns the index-relative path of the segment
// currently being read, or "" if none is open.
func (r *SequentialBinlogReader) CurrentSegment() string {
	if r.currentIndex < 0 || r.currentIndex >= len(r.logFileList) {
		return ""
	}
	return r.logFileList[r.currentIndex]
}
