package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	bssherrors "bssh/internal/errors"
	"bssh/internal/logging"
	"bssh/internal/storage"
)

// fakeProbe reports liveness from a fixed table.
type fakeProbe struct {
	mu    sync.Mutex
	alive map[int]bool
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{alive: make(map[int]bool)}
}

func (p *fakeProbe) Alive(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[pid]
}

func (p *fakeProbe) set(pid int, alive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive[pid] = alive
}

type termCall struct {
	pid   int
	force bool
}

// fakeTerm records termination requests and marks the pid dead in the probe.
type fakeTerm struct {
	mu    sync.Mutex
	calls []termCall
	probe *fakeProbe
}

func (f *fakeTerm) Terminate(pid int, force bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, termCall{pid: pid, force: force})
	f.mu.Unlock()
	f.probe.set(pid, false)
	return nil
}

type fixture struct {
	tracker  *Tracker
	conns    *storage.ConnectionRepository
	sessions *storage.SessionRepository
	probe    *fakeProbe
	term     *fakeTerm
}

func setupTracker(t *testing.T) *fixture {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	probe := newFakeProbe()
	term := &fakeTerm{probe: probe}
	return &fixture{
		tracker:  New(db, probe, term, 2, logging.Discard()),
		conns:    storage.NewConnectionRepository(db),
		sessions: storage.NewSessionRepository(db),
		probe:    probe,
		term:     term,
	}
}

func (f *fixture) addConnection(t *testing.T, name string) *storage.Connection {
	t.Helper()

	conn := &storage.Connection{
		ID:        uuid.New().String(),
		Name:      name,
		Host:      name + ".example.com",
		User:      "admin",
		Port:      22,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.conns.Create(conn); err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return conn
}

// addActive inserts an Active session directly, bypassing Start.
func (f *fixture) addActive(t *testing.T, connectionID string, pid int, alive bool) *storage.Session {
	t.Helper()

	var pidp *int
	if pid > 0 {
		pidp = &pid
		f.probe.set(pid, alive)
	}
	sess := &storage.Session{
		ID:           uuid.New().String(),
		ConnectionID: connectionID,
		StartedAt:    time.Now().UTC(),
		Status:       storage.SessionActive,
		PID:          pidp,
	}
	if err := f.sessions.Create(sess); err != nil {
		t.Fatalf("Create session error = %v", err)
	}
	return sess
}

func (f *fixture) status(t *testing.T, sessionID string) storage.SessionStatus {
	t.Helper()

	sess, err := f.sessions.Get(sessionID)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", sessionID, err)
	}
	if sess == nil {
		t.Fatalf("session %s not found", sessionID)
	}
	return sess.Status
}

func TestStart(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	sess, err := f.tracker.Start(ctx, conn.ID, 4242)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if sess.Status != storage.SessionActive {
		t.Errorf("Status = %s, want %s", sess.Status, storage.SessionActive)
	}
	if sess.PID == nil || *sess.PID != 4242 {
		t.Errorf("PID = %v, want 4242", sess.PID)
	}

	got, err := f.conns.Get(conn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastUsed == nil {
		t.Error("Start() did not bump last_used")
	}
}

func TestStartUnknownConnection(t *testing.T) {
	f := setupTracker(t)

	_, err := f.tracker.Start(context.Background(), "no-such-id", 1)
	if !bssherrors.HasCode(err, bssherrors.InvalidState) {
		t.Errorf("Start() error = %v, want INVALID_STATE", err)
	}
}

func TestFinish(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	t.Run("exit zero completes", func(t *testing.T) {
		sess, _ := f.tracker.Start(ctx, conn.ID, 100)
		if err := f.tracker.Finish(ctx, sess.ID, 0); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}

		got, _ := f.sessions.Get(sess.ID)
		if got.Status != storage.SessionCompleted {
			t.Errorf("Status = %s, want %s", got.Status, storage.SessionCompleted)
		}
		if got.ExitCode == nil || *got.ExitCode != 0 {
			t.Errorf("ExitCode = %v, want 0", got.ExitCode)
		}
		if got.EndedAt == nil {
			t.Error("EndedAt not set")
		}
	})

	t.Run("non-zero exit fails", func(t *testing.T) {
		sess, _ := f.tracker.Start(ctx, conn.ID, 101)
		if err := f.tracker.Finish(ctx, sess.ID, 255); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if got := f.status(t, sess.ID); got != storage.SessionFailed {
			t.Errorf("Status = %s, want %s", got, storage.SessionFailed)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		err := f.tracker.Finish(ctx, "missing", 0)
		if !bssherrors.HasCode(err, bssherrors.InvalidState) {
			t.Errorf("Finish() error = %v, want INVALID_STATE", err)
		}
	})
}

func TestFinishIdempotent(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	sess, _ := f.tracker.Start(ctx, conn.ID, 100)
	if err := f.tracker.Finish(ctx, sess.ID, 0); err != nil {
		t.Fatalf("first Finish() error = %v", err)
	}

	// The second finish must not error and must not clobber the outcome.
	if err := f.tracker.Finish(ctx, sess.ID, 7); err != nil {
		t.Fatalf("second Finish() error = %v", err)
	}

	got, _ := f.sessions.Get(sess.ID)
	if got.Status != storage.SessionCompleted {
		t.Errorf("Status = %s, want %s after double finish", got.Status, storage.SessionCompleted)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0 after double finish", got.ExitCode)
	}
}

func TestCompletedNeverReverts(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	sess, _ := f.tracker.Start(ctx, conn.ID, 100)
	f.probe.set(100, false)

	if err := f.tracker.Finish(ctx, sess.ID, 0); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	won, err := f.tracker.Reconcile(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if won {
		t.Error("Reconcile() transitioned a completed session")
	}

	n, err := f.tracker.CleanupStale(ctx)
	if err != nil {
		t.Fatalf("CleanupStale() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CleanupStale() = %d, want 0", n)
	}

	if got := f.status(t, sess.ID); got != storage.SessionCompleted {
		t.Errorf("Status = %s, want %s", got, storage.SessionCompleted)
	}
}

func TestReconcile(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	t.Run("dead process goes stale", func(t *testing.T) {
		sess := f.addActive(t, conn.ID, 200, false)

		won, err := f.tracker.Reconcile(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if !won {
			t.Error("Reconcile() = false, want true")
		}

		got, _ := f.sessions.Get(sess.ID)
		if got.Status != storage.SessionStale {
			t.Errorf("Status = %s, want %s", got.Status, storage.SessionStale)
		}
		if got.ExitCode != nil {
			t.Errorf("ExitCode = %v, want nil for stale", got.ExitCode)
		}
		if got.EndedAt == nil {
			t.Error("EndedAt not set")
		}

		// Already stale: the second call reports no transition.
		won, err = f.tracker.Reconcile(ctx, sess.ID)
		if err != nil || won {
			t.Errorf("second Reconcile() = (%v, %v), want (false, nil)", won, err)
		}
	})

	t.Run("live process untouched", func(t *testing.T) {
		sess := f.addActive(t, conn.ID, 201, true)

		won, err := f.tracker.Reconcile(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if won {
			t.Error("Reconcile() = true for a live process")
		}
		if got := f.status(t, sess.ID); got != storage.SessionActive {
			t.Errorf("Status = %s, want %s", got, storage.SessionActive)
		}
	})

	t.Run("active without pid goes stale", func(t *testing.T) {
		sess := f.addActive(t, conn.ID, 0, false)

		won, err := f.tracker.Reconcile(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if !won {
			t.Error("Reconcile() = false, want true for pid-less active session")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.tracker.Reconcile(ctx, "missing")
		if !bssherrors.HasCode(err, bssherrors.InvalidState) {
			t.Errorf("Reconcile() error = %v, want INVALID_STATE", err)
		}
	})
}

func TestCleanupStale(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	ctx := context.Background()

	f.addActive(t, conn.ID, 300, false)
	f.addActive(t, conn.ID, 301, false)
	live := f.addActive(t, conn.ID, 302, true)

	n, err := f.tracker.CleanupStale(ctx)
	if err != nil {
		t.Fatalf("CleanupStale() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CleanupStale() = %d, want 2", n)
	}
	if got := f.status(t, live.ID); got != storage.SessionActive {
		t.Errorf("live session status = %s, want %s", got, storage.SessionActive)
	}

	// Nothing changed since the first pass: idempotent.
	n, err = f.tracker.CleanupStale(ctx)
	if err != nil {
		t.Fatalf("second CleanupStale() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second CleanupStale() = %d, want 0", n)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("by session id terminates and records exit", func(t *testing.T) {
		f := setupTracker(t)
		conn := f.addConnection(t, "web")
		sess := f.addActive(t, conn.ID, 400, true)

		out, err := f.tracker.Close(ctx, sess.ID, false)
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if out.Terminated != 1 || out.Reclassified != 0 {
			t.Errorf("outcome = %+v, want 1 terminated", out)
		}
		if len(f.term.calls) != 1 || f.term.calls[0] != (termCall{pid: 400, force: false}) {
			t.Errorf("terminator calls = %v, want [{400 false}]", f.term.calls)
		}

		got, _ := f.sessions.Get(sess.ID)
		if got.Status != storage.SessionFailed {
			t.Errorf("Status = %s, want %s", got.Status, storage.SessionFailed)
		}
		if got.ExitCode == nil || *got.ExitCode != ExitTerminated {
			t.Errorf("ExitCode = %v, want %d", got.ExitCode, ExitTerminated)
		}
	})

	t.Run("force kills and records kill exit", func(t *testing.T) {
		f := setupTracker(t)
		conn := f.addConnection(t, "web")
		sess := f.addActive(t, conn.ID, 401, true)

		out, err := f.tracker.Close(ctx, sess.ID, true)
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if out.Terminated != 1 {
			t.Errorf("outcome = %+v, want 1 terminated", out)
		}
		if len(f.term.calls) != 1 || !f.term.calls[0].force {
			t.Errorf("terminator calls = %v, want forced", f.term.calls)
		}

		got, _ := f.sessions.Get(sess.ID)
		if got.ExitCode == nil || *got.ExitCode != ExitKilled {
			t.Errorf("ExitCode = %v, want %d", got.ExitCode, ExitKilled)
		}
	})

	t.Run("dead process reclassified", func(t *testing.T) {
		f := setupTracker(t)
		conn := f.addConnection(t, "web")
		sess := f.addActive(t, conn.ID, 402, false)

		out, err := f.tracker.Close(ctx, sess.ID, false)
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if out.Reclassified != 1 || out.Terminated != 0 {
			t.Errorf("outcome = %+v, want 1 reclassified", out)
		}
		if len(f.term.calls) != 0 {
			t.Errorf("terminator called for a dead process: %v", f.term.calls)
		}
		if got := f.status(t, sess.ID); got != storage.SessionStale {
			t.Errorf("Status = %s, want %s", got, storage.SessionStale)
		}
	})

	t.Run("by connection name closes all its sessions", func(t *testing.T) {
		f := setupTracker(t)
		conn := f.addConnection(t, "Web-Prod")
		other := f.addConnection(t, "other")
		f.addActive(t, conn.ID, 403, true)
		f.addActive(t, conn.ID, 404, false)
		untouched := f.addActive(t, other.ID, 405, true)

		out, err := f.tracker.Close(ctx, "web-prod", false)
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if out.Terminated != 1 || out.Reclassified != 1 {
			t.Errorf("outcome = %+v, want 1 terminated and 1 reclassified", out)
		}
		if got := f.status(t, untouched.ID); got != storage.SessionActive {
			t.Errorf("other connection's session status = %s, want active", got)
		}
	})

	t.Run("terminal session by id is a no-op", func(t *testing.T) {
		f := setupTracker(t)
		conn := f.addConnection(t, "web")
		sess := f.addActive(t, conn.ID, 406, true)
		if err := f.tracker.Finish(ctx, sess.ID, 0); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}

		out, err := f.tracker.Close(ctx, sess.ID, false)
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if out != (CloseOutcome{}) {
			t.Errorf("outcome = %+v, want zero", out)
		}
	})

	t.Run("unknown ref", func(t *testing.T) {
		f := setupTracker(t)
		f.addConnection(t, "web")

		_, err := f.tracker.Close(ctx, "nope", false)
		if !bssherrors.HasCode(err, bssherrors.NotFound) {
			t.Errorf("Close() error = %v, want NOT_FOUND", err)
		}
	})

	t.Run("no active sessions for connection", func(t *testing.T) {
		f := setupTracker(t)
		f.addConnection(t, "idle")

		_, err := f.tracker.Close(ctx, "idle", false)
		if !bssherrors.HasCode(err, bssherrors.NotFound) {
			t.Errorf("Close() error = %v, want NOT_FOUND", err)
		}
	})
}

func TestCloseAll(t *testing.T) {
	f := setupTracker(t)
	a := f.addConnection(t, "a")
	b := f.addConnection(t, "b")
	f.addActive(t, a.ID, 500, true)
	f.addActive(t, b.ID, 501, true)
	f.addActive(t, b.ID, 502, false)

	out, err := f.tracker.CloseAll(context.Background(), false)
	if err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}
	if out.Terminated != 2 || out.Reclassified != 1 {
		t.Errorf("outcome = %+v, want 2 terminated and 1 reclassified", out)
	}

	left, err := f.sessions.ListActive()
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(left) != 0 {
		t.Errorf("active sessions left = %d, want 0", len(left))
	}
}

func TestListActive(t *testing.T) {
	f := setupTracker(t)
	conn := f.addConnection(t, "web")
	f.addActive(t, conn.ID, 600, true)
	f.addActive(t, conn.ID, 601, false)

	active, err := f.tracker.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2", len(active))
	}

	byPID := map[int]ActiveSession{}
	for _, a := range active {
		if a.ConnectionName != "web" {
			t.Errorf("ConnectionName = %q, want web", a.ConnectionName)
		}
		byPID[*a.PID] = a
	}
	if !byPID[600].Alive {
		t.Error("pid 600 should be alive")
	}
	if byPID[601].Alive {
		t.Error("pid 601 should be dead")
	}
}
