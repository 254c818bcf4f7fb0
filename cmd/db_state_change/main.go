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

// Command db_state_change drives StateChanger from the command line,
// spec.md §6: make_cluster / rollback / auto-rollback / prepend /
// full-replay / replay against a state log and an intermediate
// database.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ogl-crest/ultraverse/config"
	"github.com/ogl-crest/ultraverse/logutil"
	"github.com/ogl-crest/ultraverse/mariadb/dbhandle"
	"github.com/ogl-crest/ultraverse/state/statelog"
	"github.com/ogl-crest/ultraverse/statechange"
)

// exit codes, spec.md §6.
const (
	exitOK             = 0
	exitUsageOrConfig  = 1
	exitUserDeclined   = 2
)

// CLI is kong's flag/positional-argument model for db_state_change's
// [OPTIONS] CONFIG_JSON ACTION surface; the bespoke "action(:action)*"
// grammar inside ACTION is parsed separately by ParseActions.
type CLI struct {
	GidRange           string `name:"gid-range" help:"Restrict replay to GID range START...END."`
	SkipGids           string `name:"skip-gids" help:"Comma separated GIDs to skip entirely."`
	ReplayFrom         string `name:"replay-from" help:"Resume replay at this GID."`
	NoExecReplaceQuery bool   `name:"no-exec-replace-query" help:"Do not execute REPLACE-rewritten statements."`
	DryRun             bool   `name:"dry-run" help:"Report what would run without touching the intermediate database."`
	Verbose            bool   `short:"v" help:"Enable debug logging."`
	VeryVerbose        bool   `short:"V" help:"Enable debug logging with human-readable output."`

	ConfigJSON string `arg:"" name:"config-json" help:"Path to the configuration JSON document."`
	Action     string `arg:"" name:"action" help:"Colon-separated action list, spec.md §6."`
}

func main() {
	os.Exit(run())
}

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

	actions, err := ParseActions(cli.Action)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	cfg, err := config.Load(cli.ConfigJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	log, err := logutil.New(logutil.Options{Verbose: cli.Verbose || cli.VeryVerbose, Development: cli.VeryVerbose})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	defer log.Sync()

	plan, err := buildPlan(cfg, cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dial := func(ctx context.Context, dbCfg dbhandle.Config, maxConns int) (statechange.DbHandle, error) {
		return dbhandle.Open(ctx, dbhandle.DriverName, dbCfg, maxConns, log)
	}

	threadCount := cfg.StateChange.ThreadCount
	if threadCount < 1 {
		threadCount = 2 * runtime.GOMAXPROCS(0)
	}
	sc := statechange.New(log, dial, threadCount)
	defer sc.Close()

	for _, action := range actions {
		if err := dispatch(ctx, sc, plan, action); err != nil {
			if err == errUserDeclined {
				return exitUserDeclined
			}
			fmt.Fprintln(os.Stderr, err)
			return exitUsageOrConfig
		}
	}
	return exitOK
}

var errUserDeclined = fmt.Errorf("db_state_change: user declined confirmation")

// dispatch resolves one parsed Action against its StateChanger
// operation, prompting for confirmation first when the action mutates
// the intermediate database and --dry-run was not given.
func dispatch(ctx context.Context, sc *statechange.StateChanger, plan *statechange.StateChangePlan, a Action) error {
	switch a.Kind {
	case ActionMakeCluster:
		return sc.MakeCluster(plan)

	case ActionRollback:
		if err := confirm(plan, fmt.Sprintf("roll back %d transaction(s)", len(a.RollbackGIDs))); err != nil {
			return err
		}
		p := *plan
		p.RollbackGIDs = append(append([]statelog.GID{}, plan.RollbackGIDs...), a.RollbackGIDs...)
		_, err := sc.FullReplay(ctx, &p)
		return err

	case ActionAutoRollback:
		gids, err := sc.AutoRollbackGIDs(plan, a.Ratio)
		if err != nil {
			return err
		}
		if err := confirm(plan, fmt.Sprintf("auto-roll back %d transaction(s) (ratio %.3f)", len(gids), a.Ratio)); err != nil {
			return err
		}
		p := *plan
		p.RollbackGIDs = append(append([]statelog.GID{}, plan.RollbackGIDs...), gids...)
		_, err = sc.FullReplay(ctx, &p)
		return err

	case ActionPrepend:
		if err := confirm(plan, fmt.Sprintf("prepend %q before gid %d", a.PrependFile, a.PrependGID)); err != nil {
			return err
		}
		p := *plan
		p.UserQueries = map[statelog.GID]string{a.PrependGID: a.PrependFile}
		for gid, file := range plan.UserQueries {
			p.UserQueries[gid] = file
		}
		_, err := sc.FullReplay(ctx, &p)
		return err

	case ActionFullReplay:
		if err := confirm(plan, "replay the entire state log"); err != nil {
			return err
		}
		_, err := sc.FullReplay(ctx, plan)
		return err

	case ActionReplay:
		if err := confirm(plan, "replay the prepared plan"); err != nil {
			return err
		}
		_, err := sc.FullReplay(ctx, plan)
		return err

	default:
		return fmt.Errorf("db_state_change: unhandled action kind %d", a.Kind)
	}
}

// confirm prompts on stdin before a mutating action, unless the plan
// is a dry run (which never touches the intermediate database and so
// needs no confirmation), returning errUserDeclined on any answer but
// "y"/"yes" (spec.md §6 exit code 2).
func confirm(plan *statechange.StateChangePlan, action string) error {
	if plan.DryRun {
		return nil
	}
	fmt.Fprintf(os.Stderr, "about to %s against intermediate database %q — proceed? [y/N] ", action, plan.DBName)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line != "y" && line != "yes" {
		return errUserDeclined
	}
	return nil
}

// buildPlan assembles a StateChangePlan from cfg plus the CLI flags
// that override or extend it (spec.md §6's --gid-range/--skip-gids/
// --replay-from/--no-exec-replace-query/--dry-run).
func buildPlan(cfg *config.Config, cli CLI) (*statechange.StateChangePlan, error) {
	plan := &statechange.StateChangePlan{
		StateLogPath: cfg.StateLog.Path,
		StateLogName: cfg.StateLog.Name,

		DBName: cfg.Database.Name,
		DBHost: cfg.Database.Host,
		DBPort: cfg.Database.Port,
		DBUser: cfg.Database.Username,
		DBPass: cfg.Database.Password,

		DumpPath:            cfg.StateChange.BackupFile,
		DropIntermediateDB:  !cfg.StateChange.KeepIntermediateDatabase,
		ExecuteReplaceQuery: !cli.NoExecReplaceQuery,
		DryRun:              cli.DryRun,
		ThreadCount:         cfg.StateChange.ThreadCount,
	}
	for _, col := range cfg.KeyColumns {
		plan.KeyColumnGroups = append(plan.KeyColumnGroups, statechange.KeyColumnGroup{Columns: []string{col}})
	}
	for col, aliases := range cfg.ColumnAliases {
		for _, alias := range aliases {
			plan.ColumnAliases = append(plan.ColumnAliases, statechange.ColumnAlias{
				Column: alias, RealColumn: col,
			})
		}
	}
	switch cfg.StateChange.RangeComparisonMethod {
	case "intersect":
		plan.RangeComparison = statechange.RangeIntersect
	default:
		plan.RangeComparison = statechange.RangeEqOnly
	}

	if cli.GidRange != "" {
		start, end, err := parseGIDRange(cli.GidRange)
		if err != nil {
			return nil, err
		}
		plan.StartGID = &start
		plan.EndGID = &end
	}
	if cli.SkipGids != "" {
		gids, err := parseGIDList(cli.SkipGids)
		if err != nil {
			return nil, err
		}
		plan.SkipGIDs = map[statelog.GID]struct{}{}
		for _, g := range gids {
			plan.SkipGIDs[g] = struct{}{}
		}
	}
	if cli.ReplayFrom != "" {
		gid, err := parseGID(cli.ReplayFrom)
		if err != nil {
			return nil, err
		}
		plan.ReplayFromGID = &gid
	}
	return plan, nil
}
