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
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ogl-crest/ultraverse/base/taskexecutor"
	"github.com/ogl-crest/ultraverse/mariadb/dbhandle"
	"github.com/ogl-crest/ultraverse/state/cluster"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// DbHandle is the capability surface StateChanger drives the
// intermediate database through (spec.md §1/§4.8): the production
// implementation is mariadb/dbhandle.DbHandle; tests substitute a
// hand-written mock so replay logic runs with no live server.
type DbHandle interface {
	Execute(ctx context.Context, stmt string) (int64, error)
	FetchRows(ctx context.Context, query string) ([]dbhandle.Row, error)
	ConsumeMultiResult(ctx context.Context, stmt string) ([][]dbhandle.Row, error)
	SetAutocommit(ctx context.Context, on bool) error
	Close() error
}

// Dialer opens a DbHandle for the named intermediate database, given
// the plan's connection parameters. Production wiring is
// dbhandle.Open; tests supply a fake returning a mock DbHandle.
type Dialer func(ctx context.Context, cfg dbhandle.Config, maxConns int) (DbHandle, error)

// StateChanger is the orchestrator spec.md §4.8 describes: it builds
// clusters/graphs from a state log, computes rollback reachability,
// and drives an intermediate database through the recorded
// transactions, either fully (fullReplay) or selectively (replay
// from a prepared plan).
type StateChanger struct {
	log     *zap.Logger
	ctx     *StateChangeContext
	exec    *taskexecutor.Executor
	dial    Dialer
}

// New builds a StateChanger. log may be nil (defaults to a no-op
// logger); workers sizes the backing task executor pool that
// FullReplay dispatches transactions onto.
func New(log *zap.Logger, dial Dialer, workers int) *StateChanger {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &StateChanger{
		log:  log,
		ctx:  NewStateChangeContext(),
		exec: taskexecutor.New(workers),
		dial: dial,
	}
}

// Context exposes the shared StateChangeContext so callers (e.g. a
// CLI's DDL pre-scan) can seed primary/foreign keys before MakeCluster
// or replay runs.
func (sc *StateChanger) Context() *StateChangeContext { return sc.ctx }

// Close releases the backing task executor.
func (sc *StateChanger) Close() error {
	sc.exec.Shutdown()
	return nil
}

// FullReplay implements spec.md §4.8's full_replay(): create (and
// optionally first drop) the intermediate database, optionally
// restore a base dump into it, then walk the state log end to end
// applying every non-skipped transaction's queries in order. A
// procedure-call transaction replays only its FlagIsProcCallQuery
// statements, skipping the FlagIsProcCallRecovered siblings captured
// purely for audit. A query failure rolls back that transaction and
// continues with the next one rather than aborting the run, per
// spec.md §7's replay error policy.
//
// A GID listed in plan.RollbackGIDs is excluded from replay entirely
// (spec.md §4.8: "for each transaction whose GID ∉ rollback_gids,
// ... replay"), and any sqlfile registered in plan.UserQueries for a
// GID is executed, statement by statement, immediately before that
// GID's own transaction (spec.md §6's "prepend=" action). plan.DryRun
// runs the same walk and reports what would have executed without
// issuing any statement against the intermediate database.
func (sc *StateChanger) FullReplay(ctx context.Context, plan *StateChangePlan) (*ReplayReport, error) {
	hp, err := sc.openIntermediate(ctx, plan)
	if err != nil {
		return nil, err
	}
	defer hp.Close()

	if plan.DumpPath != "" && !plan.DryRun {
		if err := RestoreDump(ctx, plan, plan.DumpPath); err != nil {
			return nil, err
		}
	}

	reader, err := statelog.OpenReader(plan.StateLogPath, plan.StateLogName, sc.log)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	report := &ReplayReport{}
	var inflight []inflightReplay

	// drain waits out and merges every in-flight task for which keep
	// returns false, releasing its leased handle back to hp. The
	// driver goroutine is the only one that ever touches report, so no
	// locking is needed even though the tasks themselves run on
	// sc.exec's worker pool.
	drain := func(keep func(inflightReplay) bool) {
		var remain []inflightReplay
		for _, f := range inflight {
			if keep(f) {
				remain = append(remain, f)
				continue
			}
			res, err := f.future.Get()
			hp.release(f.handle)
			if res.prepended {
				report.Prepended++
			}
			if err != nil {
				sc.log.Warn("statechange: transaction replay failed, rolled back",
					zap.Uint64("gid", uint64(f.gid)), zap.Error(err))
				report.Failed++
				continue
			}
			report.Applied++
		}
		inflight = remain
	}
	drainAll := func() { drain(func(inflightReplay) bool { return false }) }

	for {
		tx, err := reader.NextTransaction()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			drainAll()
			return report, err
		}
		if tx == nil {
			report.SkippedUnparseable++
			continue
		}
		if plan.inSkipSet(tx.Header.GID) {
			report.Skipped++
			continue
		}
		if plan.StartGID != nil && tx.Header.GID < *plan.StartGID {
			continue
		}
		if plan.ReplayFromGID != nil && tx.Header.GID < *plan.ReplayFromGID {
			continue
		}
		if plan.EndGID != nil && tx.Header.GID > *plan.EndGID {
			break
		}
		if plan.inRollbackSet(tx.Header.GID) {
			report.RolledBack++
			continue
		}

		// Replay within one transaction is strictly in order; across
		// transactions the replay driver may only interleave ones
		// whose write-column sets are disjoint, so wait out (and
		// retire) every currently in-flight transaction this one
		// conflicts with before leasing a handle and dispatching it.
		ws := txWriteSet(tx)
		drain(func(f inflightReplay) bool { return !writeSetsIntersect(f.writeSet, ws) })

		h, err := hp.lease(ctx)
		if err != nil {
			drainAll()
			return report, err
		}

		sqlfile, hasPrepend := plan.UserQueries[tx.Header.GID]
		gid := tx.Header.GID
		fut := taskexecutor.Post(sc.exec, func() (replayResult, error) {
			var res replayResult
			if hasPrepend {
				if err := sc.runUserQueryFile(ctx, h, plan, sqlfile); err != nil {
					sc.log.Warn("statechange: prepended sql file failed, continuing with its transaction anyway",
						zap.Uint64("gid", uint64(gid)), zap.String("file", sqlfile), zap.Error(err))
				} else {
					res.prepended = true
				}
			}
			return res, sc.replayTransaction(ctx, h, tx, plan.DryRun)
		})
		inflight = append(inflight, inflightReplay{gid: gid, writeSet: ws, handle: h, future: fut})
	}
	drainAll()
	return report, nil
}

// replayResult is the value a dispatched replay task resolves its
// Future with; report's counters are only ever updated by drain, back
// on the driver goroutine, to avoid a data race against its
// sequential reads from the replay loop itself.
type replayResult struct {
	prepended bool
}

// inflightReplay is one transaction currently running on sc.exec's
// worker pool: the column set its queries write, the handle leased to
// it from the intermediate database's handle pool, and the future its
// dispatch resolves.
type inflightReplay struct {
	gid      statelog.GID
	writeSet map[string]struct{}
	handle   DbHandle
	future   *taskexecutor.Future[replayResult]
}

// txWriteSet is the union of every query's write columns in tx,
// the admission test spec.md §5's replay driver uses to decide whether
// two transactions may run concurrently.
func txWriteSet(tx *statelog.Transaction) map[string]struct{} {
	set := make(map[string]struct{})
	for _, q := range tx.Queries {
		for _, c := range q.WriteColumns {
			set[c] = struct{}{}
		}
	}
	return set
}

// writeSetsIntersect reports whether a and b share any column.
func writeSetsIntersect(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// runUserQueryFile reads path and executes each semicolon-delimited
// statement against db, outside of any replayed transaction's BEGIN/
// COMMIT boundary — it is the "prepend=gid,sqlfile" action's
// mechanism for inserting operator-authored SQL ahead of a given GID.
func (sc *StateChanger) runUserQueryFile(ctx context.Context, db DbHandle, plan *StateChangePlan, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "statechange: read user query file %q", path)
	}
	if plan.DryRun {
		return nil
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Execute(ctx, stmt); err != nil {
			return errors.Wrapf(err, "statechange: user query %q", stmt)
		}
	}
	return nil
}

// ReplayReport summarizes one replay run's outcome, the basis for the
// plan's optional report_path output (spec.md §6).
type ReplayReport struct {
	Applied            int
	Failed             int
	Skipped            int
	SkippedUnparseable int
	RolledBack         int
	Prepended          int
}

// handlePool leases distinct DbHandles to concurrently replayed
// transactions, the connection pool of size thread_count spec.md §5
// describes (default 2 x hardware_concurrency): each handle is its own
// single-connection session, so two transactions running at once on
// the worker pool never share a SET autocommit / COMMIT sequence.
type handlePool struct {
	all  []DbHandle
	free chan DbHandle
}

func newHandlePool(ctx context.Context, dial Dialer, cfg dbhandle.Config, n int) (*handlePool, error) {
	if n < 1 {
		n = 1
	}
	hp := &handlePool{free: make(chan DbHandle, n)}
	for i := 0; i < n; i++ {
		h, err := dial(ctx, cfg, 1)
		if err != nil {
			hp.Close()
			return nil, err
		}
		hp.all = append(hp.all, h)
		hp.free <- h
	}
	return hp, nil
}

// lease blocks until a handle is free or ctx is done.
func (hp *handlePool) lease(ctx context.Context) (DbHandle, error) {
	select {
	case h := <-hp.free:
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (hp *handlePool) release(h DbHandle) { hp.free <- h }

// Close closes every handle the pool ever dialed, leased or not.
func (hp *handlePool) Close() error {
	var firstErr error
	for _, h := range hp.all {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (sc *StateChanger) openIntermediate(ctx context.Context, plan *StateChangePlan) (*handlePool, error) {
	if plan.DropIntermediateDB {
		admin, err := sc.dial(ctx, dbhandle.Config{Host: plan.DBHost, Port: plan.DBPort, User: plan.DBUser, Password: plan.DBPass}, 1)
		if err != nil {
			return nil, err
		}
		if _, err := admin.Execute(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", plan.DBName)); err != nil {
			admin.Close()
			return nil, errors.Wrap(err, "statechange: drop intermediate database")
		}
		if err := admin.Close(); err != nil {
			return nil, err
		}
	}

	admin, err := sc.dial(ctx, dbhandle.Config{Host: plan.DBHost, Port: plan.DBPort, User: plan.DBUser, Password: plan.DBPass}, 1)
	if err != nil {
		return nil, err
	}
	_, err = admin.Execute(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", plan.DBName))
	closeErr := admin.Close()
	if err != nil {
		return nil, errors.Wrap(err, "statechange: create intermediate database")
	}
	if closeErr != nil {
		return nil, closeErr
	}

	poolSize := plan.ThreadCount
	if poolSize < 1 {
		poolSize = 2 * runtime.GOMAXPROCS(0)
	}
	return newHandlePool(ctx, sc.dial,
		dbhandle.Config{Host: plan.DBHost, Port: plan.DBPort, User: plan.DBUser, Password: plan.DBPass, Database: plan.DBName},
		poolSize)
}

// replayTransaction applies tx's queries in order. When dryRun is set
// it only renders the statement-context preamble (to surface its own
// errors) and logs what would run, issuing no statement against db —
// used by the CLI's --dry-run flag to preview a plan without touching
// the intermediate database.
func (sc *StateChanger) replayTransaction(ctx context.Context, db DbHandle, tx *statelog.Transaction, dryRun bool) error {
	if dryRun {
		for _, q := range tx.Queries {
			if tx.Header.IsProcedureCall() && q.Flags&statelog.FlagIsProcCallQuery == 0 {
				continue
			}
			if q.IsIgnorable() {
				continue
			}
			if _, err := statementContextSQL(q); err != nil {
				return err
			}
			sc.log.Info("statechange: dry-run would execute",
				zap.Uint64("gid", uint64(tx.Header.GID)), zap.String("statement", q.Statement))
		}
		return nil
	}

	if err := db.SetAutocommit(ctx, false); err != nil {
		return err
	}
	for _, q := range tx.Queries {
		if tx.Header.IsProcedureCall() && q.Flags&statelog.FlagIsProcCallQuery == 0 {
			continue
		}
		if q.IsIgnorable() {
			continue
		}
		ctxStmts, err := statementContextSQL(q)
		if err != nil {
			db.Execute(ctx, "ROLLBACK")
			return err
		}
		for _, stmt := range ctxStmts {
			if _, err := db.Execute(ctx, stmt); err != nil {
				db.Execute(ctx, "ROLLBACK")
				return errors.Wrapf(err, "statechange: statement context %q", stmt)
			}
		}
		if _, err := db.Execute(ctx, q.Statement); err != nil {
			db.Execute(ctx, "ROLLBACK")
			return errors.Wrapf(err, "statechange: query %q", q.Statement)
		}
	}
	_, err := db.Execute(ctx, "COMMIT")
	return err
}

// Prepare computes spec.md §4.8's prepare() set from the persisted row
// cluster alone: for each requested rollback GID, it walks the cluster
// entries of every key column group looking for each entry whose GID
// list contains it, and returns the union of those entries' GIDs as
// the transactions a subsequent replay must actually touch. The column
// and table dependency graphs are not consulted, so a transaction
// linked to a rollback GID only through them is not in the set. It
// does not run any database operation.
func (sc *StateChanger) Prepare(plan *StateChangePlan) (map[statelog.GID]struct{}, error) {
	rc := cluster.New()
	if err := statelog.ReadAux(plan.StateLogPath, plan.StateLogName, statelog.AuxCluster, rc); err != nil {
		return nil, errors.Wrap(err, "statechange: read persisted row cluster")
	}

	affected := map[statelog.GID]struct{}{}
	mark := func(gid statelog.GID, gids []statelog.GID) {
		if !cluster.IsTransactionRelated(gid, gids) {
			return
		}
		for _, related := range gids {
			affected[related] = struct{}{}
		}
	}
	for _, gid := range plan.RollbackGIDs {
		for _, kg := range plan.KeyColumnGroups {
			if len(kg.Columns) == 1 {
				for _, e := range rc.Entries(kg.Columns[0]) {
					mark(gid, e.GIDs)
				}
				continue
			}
			for _, e := range rc.CompositeEntries(rc.AddCompositeKey(kg.Columns)) {
				mark(gid, e.GIDs)
			}
		}
	}
	return affected, nil
}

// AutoRollbackGIDs implements the "auto-rollback" action's selection
// policy: spec.md §9's Open Question notes that only
// bench_prepareRollback() — not the full prepare()/start() path — is
// wired for this action in the original source, so this picks the
// newest ratio fraction of the state log's transactions (by GID,
// which spec.md §3 guarantees is dense and monotonically increasing)
// as the candidate rollback set, reading only the GID index (not the
// row cluster Prepare reads for an explicit GID list). ratio is clamped to
// [0,1].
func (sc *StateChanger) AutoRollbackGIDs(plan *StateChangePlan, ratio float64) ([]statelog.GID, error) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	idx, err := statelog.OpenGIDIndexReader(plan.StateLogPath, plan.StateLogName)
	if err != nil {
		return nil, errors.Wrap(err, "statechange: open gid index")
	}
	defer idx.Close()

	total := idx.Len()
	if total == 0 || ratio == 0 {
		return nil, nil
	}
	n := int(math.Ceil(ratio * float64(total)))
	if n > total {
		n = total
	}
	gids := make([]statelog.GID, 0, n)
	for i := total - n; i < total; i++ {
		gids = append(gids, statelog.GID(i))
	}
	return gids, nil
}
