// Package session drives the lifecycle of launched processes: every launch
// is recorded as an Active session, and exactly one observer moves it to a
// terminal status. Concurrent invocations coordinate through conditional
// store updates, so a crashed watcher never leaves a session permanently
// Active; the next cleanup reclassifies it as Stale.
package session

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	bssherrors "bssh/internal/errors"
	"bssh/internal/proc"
	"bssh/internal/storage"
)

// Exit codes recorded when a session is closed by request rather than by its
// own process ending.
const (
	ExitTerminated = -15
	ExitKilled     = -9
)

// CloseOutcome summarizes what a Close call did.
type CloseOutcome struct {
	// Terminated counts sessions whose process was stopped and recorded
	Terminated int
	// Reclassified counts sessions whose process was already gone and were
	// moved to Stale
	Reclassified int
}

// ActiveSession is an active record annotated with a liveness probe result.
type ActiveSession struct {
	storage.SessionRecord
	Alive bool
}

// Tracker owns session state transitions. All writes go through conditional
// updates keyed on the Active status, so two trackers racing over the same
// session agree on a single winner.
type Tracker struct {
	db       *storage.DB
	conns    *storage.ConnectionRepository
	sessions *storage.SessionRepository
	probe    proc.Probe
	term     proc.Terminator
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a tracker over the given store. workers bounds the cleanup
// probe pool.
func New(db *storage.DB, probe proc.Probe, term proc.Terminator, workers int, logger *slog.Logger) *Tracker {
	if workers < 1 {
		workers = 1
	}
	return &Tracker{
		db:       db,
		conns:    storage.NewConnectionRepository(db),
		sessions: storage.NewSessionRepository(db),
		probe:    probe,
		term:     term,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}
}

// Start records a session for a freshly launched process and bumps the
// connection's last-used timestamp in the same transaction. Starting against
// an unknown connection is an InvalidState error.
func (t *Tracker) Start(ctx context.Context, connectionID string, pid int) (*storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := t.conns.Get(connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, bssherrors.Newf(bssherrors.InvalidState, "cannot start session: connection %s does not exist", connectionID)
	}

	now := t.now()
	sess := &storage.Session{
		ID:           uuid.New().String(),
		ConnectionID: conn.ID,
		StartedAt:    now,
		Status:       storage.SessionActive,
		PID:          &pid,
	}

	err = t.db.WithTx(func(tx *sql.Tx) error {
		if err := t.sessions.CreateTx(tx, sess); err != nil {
			return err
		}
		return t.conns.TouchLastUsedTx(tx, conn.ID, now)
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("session started",
		"session", sess.ID,
		"connection", conn.Name,
		"pid", pid)

	return sess, nil
}

// Finish moves an Active session to Completed (exit 0) or Failed. Finishing
// a session that already reached a terminal status is a no-op; finishing an
// unknown session is an InvalidState error.
func (t *Tracker) Finish(ctx context.Context, sessionID string, exitCode int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	status := storage.SessionCompleted
	if exitCode != 0 {
		status = storage.SessionFailed
	}

	won, err := t.sessions.FinishActive(sessionID, status, t.now(), &exitCode)
	if err != nil {
		return err
	}
	if won {
		t.logger.Debug("session finished",
			"session", sessionID,
			"status", status,
			"exitCode", exitCode)
		return nil
	}

	// Someone else ended it first, or it never existed.
	sess, err := t.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return bssherrors.Newf(bssherrors.InvalidState, "cannot finish session %s: no such session", sessionID)
	}
	if sess.Status.IsTerminal() {
		return nil
	}
	return bssherrors.Newf(bssherrors.InvalidState, "cannot finish session %s in status %s", sessionID, sess.Status)
}

// Reconcile moves an Active session whose process is gone to Stale. It
// reports whether this call performed the transition; a session that is not
// Active, or whose process is still running, reconciles to false without
// error.
func (t *Tracker) Reconcile(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	sess, err := t.sessions.Get(sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, bssherrors.Newf(bssherrors.InvalidState, "cannot reconcile session %s: no such session", sessionID)
	}

	return t.reconcile(sess)
}

// reconcile is the shared probe-then-transition step. The caller supplies an
// already loaded session to spare cleanup passes a second read.
func (t *Tracker) reconcile(sess *storage.Session) (bool, error) {
	if sess.Status != storage.SessionActive {
		return false, nil
	}

	// An Active record without a PID cannot be probed; treat it as gone.
	if sess.PID != nil && t.probe.Alive(*sess.PID) {
		return false, nil
	}

	won, err := t.sessions.FinishActive(sess.ID, storage.SessionStale, t.now(), nil)
	if err != nil {
		return false, err
	}
	if won {
		t.logger.Info("session reclassified as stale",
			"session", sess.ID,
			"pid", sess.PID)
	}
	return won, nil
}

// CleanupStale probes every Active session through a bounded worker pool and
// reclassifies the dead ones as Stale. It returns how many sessions this
// pass transitioned; concurrent passes divide the wins between them, so the
// total never exceeds the number of dead sessions.
func (t *Tracker) CleanupStale(ctx context.Context) (int, error) {
	records, err := t.sessions.ListActive()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	jobs := make(chan storage.Session)
	var wg sync.WaitGroup
	var mu sync.Mutex
	reclassified := 0
	var firstErr error

	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sess := range jobs {
				won, err := t.reconcile(&sess)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if won {
					reclassified++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- rec.Session:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return reclassified, firstErr
	}
	if err := ctx.Err(); err != nil {
		return reclassified, err
	}

	t.logger.Debug("cleanup pass complete",
		"probed", len(records),
		"reclassified", reclassified)

	return reclassified, nil
}

// Close ends the sessions selected by ref, which is either a session id or a
// connection name (a name may select several active sessions). Running
// processes are terminated and their sessions finished with a derived exit
// code; already-dead processes are reclassified as Stale. The context is
// checked between sessions, so a cancellation stops the sweep but never
// interrupts an individual transition.
func (t *Tracker) Close(ctx context.Context, ref string, force bool) (CloseOutcome, error) {
	targets, err := t.resolveClose(ref)
	if err != nil {
		return CloseOutcome{}, err
	}

	var out CloseOutcome
	for _, sess := range targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := t.closeOne(&sess, force, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// CloseAll ends every active session.
func (t *Tracker) CloseAll(ctx context.Context, force bool) (CloseOutcome, error) {
	records, err := t.sessions.ListActive()
	if err != nil {
		return CloseOutcome{}, err
	}

	var out CloseOutcome
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := t.closeOne(&rec.Session, force, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// resolveClose maps a close ref to the sessions it addresses.
func (t *Tracker) resolveClose(ref string) ([]storage.Session, error) {
	sess, err := t.sessions.Get(ref)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return []storage.Session{*sess}, nil
	}

	conn, err := t.conns.GetByName(ref)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, bssherrors.Newf(bssherrors.NotFound, "no session or connection matches %q", ref)
	}

	active, err := t.sessions.ActiveByConnection(conn.ID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, bssherrors.Newf(bssherrors.NotFound, "no active sessions for connection %q", conn.Name)
	}
	return active, nil
}

// closeOne terminates or reconciles a single session, recording the result
// in out. Sessions already in a terminal status are skipped silently.
func (t *Tracker) closeOne(sess *storage.Session, force bool, out *CloseOutcome) error {
	if sess.Status != storage.SessionActive {
		return nil
	}

	alive := sess.PID != nil && t.probe.Alive(*sess.PID)
	if !alive {
		won, err := t.reconcile(sess)
		if err != nil {
			return err
		}
		if won {
			out.Reclassified++
		}
		return nil
	}

	if err := t.term.Terminate(*sess.PID, force); err != nil {
		// The process may have exited between probe and signal; leave the
		// record for the next cleanup pass rather than guessing.
		t.logger.Warn("failed to terminate process",
			"session", sess.ID,
			"pid", *sess.PID,
			"error", err)
		return nil
	}

	exit := ExitTerminated
	if force {
		exit = ExitKilled
	}
	won, err := t.sessions.FinishActive(sess.ID, storage.SessionFailed, t.now(), &exit)
	if err != nil {
		return err
	}
	if won {
		out.Terminated++
		t.logger.Info("session closed",
			"session", sess.ID,
			"pid", *sess.PID,
			"force", force)
	}
	return nil
}

// ListActive returns the active sessions joined with their connection names,
// each annotated with a current liveness probe.
func (t *Tracker) ListActive(ctx context.Context) ([]ActiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := t.sessions.ListActive()
	if err != nil {
		return nil, err
	}

	active := make([]ActiveSession, len(records))
	for i, rec := range records {
		active[i] = ActiveSession{
			SessionRecord: rec,
			Alive:         rec.PID != nil && t.probe.Alive(*rec.PID),
		}
	}
	return active, nil
}
