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

// Command statelogd tails a MariaDB/MySQL binlog and folds it into a
// state log with a GID index, spec.md §1's "Flow": statelogd groups
// events between successive commit markers into a Transaction with an
// ordered list of Query records and appends them durably.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/ogl-crest/ultraverse/base/taskexecutor"
	"github.com/ogl-crest/ultraverse/config"
	"github.com/ogl-crest/ultraverse/logutil"
	"github.com/ogl-crest/ultraverse/mariadb/binlog"
	"github.com/ogl-crest/ultraverse/state/procmatcher"
	"github.com/ogl-crest/ultraverse/state/statelog"
	"github.com/ogl-crest/ultraverse/statelogd"
)

// writerBacklogLimit/writerBackoff are the state-log writer's
// backpressure knobs, spec.md §5: the producer (binlog decode/fold
// loop below) stalls once more than 128 appends are queued ahead of
// the dedicated writer goroutine, retrying every 62.5ms.
const (
	writerBacklogLimit = 128
	writerBackoff      = 62500 * time.Microsecond
)

// CLI is kong's flag model for statelogd's `-b index_file ... -o name`
// surface (spec.md §6); -b, -o, -k and -p override their config.json
// counterparts when given, so an operator can run statelogd purely
// from the config file or override one field at a time. -c and -r are
// accepted but not read.
type CLI struct {
	ConfigJSON string `arg:"" name:"config-json" help:"Path to the configuration JSON document."`

	IndexFile    string `short:"b" name:"index-file" help:"Binlog index file name (overrides binlog.indexName)."`
	Output       string `short:"o" name:"output" help:"State log name (overrides stateLog.name)."`
	KeyColumns   string `short:"k" name:"key-columns" help:"Comma separated key columns (overrides keyColumns)."`
	ProcedureLog string `short:"p" name:"procedure-log" help:"Procedure log directory (overrides statelogd.procedureLogPath)."`
	ThreadCount  int    `short:"c" name:"thread-count" help:"Worker pool size (overrides statelogd.threadCount)."`
	Checkpoint   string `short:"r" name:"checkpoint" help:"Checkpoint file name (spec.md §6; opaque to readers)."`
	Oneshot      bool   `short:"n" help:"Disable tail-follow: stop once the binlog is exhausted."`
	PrintEvents  bool   `short:"G" name:"print-events" help:"Diagnostic: print every decoded event to stderr."`
	PrintQueries bool   `short:"Q" name:"print-queries" help:"Diagnostic: print every folded query to stderr."`
	Verbose      bool   `short:"v" help:"Enable debug logging."`
}

func main() {
	os.Exit(run())
}

const (
	exitOK            = 0
	exitUsageOrConfig = 1
)

func run() int {
	var cli CLI
	parser, err := kong.New(&cli, kong.Exit(func(int) {}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	if _, err := parser.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	cfg, err := config.Load(cli.ConfigJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	log, err := logutil.New(logutil.Options{
		Verbose:         cli.Verbose,
		DebugSubsystems: cfg.Statelogd.DevelopmentFlags,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	defer log.Sync()

	indexFile := firstNonEmpty(cli.IndexFile, cfg.Binlog.IndexName)
	stateLogName := firstNonEmpty(cli.Output, cfg.StateLog.Name)
	keyColumns := cfg.KeyColumns
	if cli.KeyColumns != "" {
		keyColumns = strings.Split(cli.KeyColumns, ",")
	}
	procLogPath := firstNonEmpty(cli.ProcedureLog, cfg.Statelogd.ProcedureLogPath)
	oneshot := cli.Oneshot || cfg.Statelogd.OneshotMode

	var matcher procmatcher.ProcMatcher
	if procLogPath != "" {
		matcher = procmatcher.NewFileProcMatcher(procLogPath)
	}

	writer, err := statelog.OpenWriter(cfg.StateLog.Path, stateLogName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	defer writer.Close()

	startGID, err := resumeGID(cfg.StateLog.Path, stateLogName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	reader, err := binlog.NewSequentialBinlogReader(cfg.Binlog.Path, indexFile, logutil.Subsystem(log, "binlog", cfg.Statelogd.DevelopmentFlags))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	reader.SetPollDisabled(oneshot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		reader.Terminate()
	}()

	b := statelogd.NewBuilder(logutil.Subsystem(log, "statelog", cfg.Statelogd.DevelopmentFlags), matcher, keyColumns, startGID)

	// A single dedicated worker drains appends in submission order
	// (spec.md §5's writer thread), so the main decode/fold loop below
	// never blocks on disk I/O except when the backlog itself grows
	// past writerBacklogLimit.
	writeExec := taskexecutor.New(1)
	defer writeExec.Shutdown()
	var pending []*taskexecutor.Future[statelog.GID]

	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("statelogd: read binlog event", zap.Error(err))
			return exitUsageOrConfig
		}
		if cli.PrintEvents {
			fmt.Fprintf(os.Stderr, "%+v\n", ev)
		}

		tx, err := b.Fold(ev)
		if err != nil {
			log.Warn("statelogd: fold event", zap.Error(err))
			continue
		}
		if tx == nil {
			continue
		}
		if cli.PrintQueries {
			for _, q := range tx.Queries {
				fmt.Fprintf(os.Stderr, "gid=%d %s\n", tx.Header.GID, q.Statement)
			}
		}

		pending, err = reapResolved(pending)
		if err != nil {
			log.Error("statelogd: append transaction", zap.Error(err))
			return exitUsageOrConfig
		}
		for writeExec.Pending() >= writerBacklogLimit {
			time.Sleep(writerBackoff)
			if pending, err = reapResolved(pending); err != nil {
				log.Error("statelogd: append transaction", zap.Error(err))
				return exitUsageOrConfig
			}
		}
		gid := tx.Header.GID
		pending = append(pending, taskexecutor.Post(writeExec, func() (statelog.GID, error) {
			return gid, writer.Append(tx)
		}))
	}

	for _, f := range pending {
		if _, err := f.Get(); err != nil {
			log.Error("statelogd: append transaction", zap.Error(err))
			return exitUsageOrConfig
		}
	}
	if err := writer.Sync(); err != nil {
		log.Error("statelogd: sync state log", zap.Error(err))
		return exitUsageOrConfig
	}
	return exitOK
}

// reapResolved drops the already-resolved prefix of pending, in
// submission order (matching the writer's own FIFO order), stopping at
// the first still-pending future or the first resolved error — a
// failed append is fatal, same as the prior synchronous writer.Append
// call this FIFO replaces.
func reapResolved(pending []*taskexecutor.Future[statelog.GID]) ([]*taskexecutor.Future[statelog.GID], error) {
	i := 0
	for ; i < len(pending); i++ {
		_, err, ok := pending[i].TryGet()
		if !ok {
			break
		}
		if err != nil {
			return pending[i+1:], err
		}
	}
	return pending[i:], nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// resumeGID opens dir/name's GID index, if it already exists, to
// determine the next GID statelogd should assign — one past the last
// GID already committed, so restarting statelogd against an existing
// state log continues the GID sequence rather than restarting it
// (spec.md §3 invariant 1's density/monotonicity requirement spans
// process restarts, not just one run).
func resumeGID(dir, name string) (statelog.GID, error) {
	idx, err := statelog.OpenGIDIndexReader(dir, name)
	if err != nil {
		return 0, nil // no prior index: fresh state log starts at GID 0
	}
	defer idx.Close()
	return statelog.GID(idx.Len()), nil
}
