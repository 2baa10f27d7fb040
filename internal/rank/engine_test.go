package rank

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"bssh/internal/config"
	bssherrors "bssh/internal/errors"
	"bssh/internal/logging"
	"bssh/internal/storage"
)

type fixture struct {
	engine   *Engine
	conns    *storage.ConnectionRepository
	sessions *storage.SessionRepository
	now      time.Time
}

func setupEngine(t *testing.T) *fixture {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		conns:    storage.NewConnectionRepository(db),
		sessions: storage.NewSessionRepository(db),
		now:      time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
	f.engine = New(f.conns, f.sessions, config.Default(), logging.Discard())
	f.engine.now = func() time.Time { return f.now }
	return f
}

// addConnection stores a profile. lastUsedAgo < 0 means never used.
func (f *fixture) addConnection(t *testing.T, name string, lastUsedAgo time.Duration) *storage.Connection {
	t.Helper()

	conn := &storage.Connection{
		ID:        uuid.New().String(),
		Name:      name,
		Host:      name + ".example.com",
		User:      "admin",
		Port:      22,
		CreatedAt: f.now.Add(-90 * 24 * time.Hour),
	}
	if lastUsedAgo >= 0 {
		used := f.now.Add(-lastUsedAgo)
		conn.LastUsed = &used
	}
	if err := f.conns.Create(conn); err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return conn
}

// addSessions records n completed sessions with the given exit code.
func (f *fixture) addSessions(t *testing.T, connectionID string, n, exitCode int) {
	t.Helper()

	for i := 0; i < n; i++ {
		started := f.now.Add(-time.Duration(i+1) * time.Hour)
		ended := started.Add(10 * time.Minute)
		status := storage.SessionCompleted
		if exitCode != 0 {
			status = storage.SessionFailed
		}
		s := &storage.Session{
			ID:           uuid.New().String(),
			ConnectionID: connectionID,
			StartedAt:    started,
			EndedAt:      &ended,
			Status:       status,
			ExitCode:     &exitCode,
		}
		if err := f.sessions.Create(s); err != nil {
			t.Fatalf("Create session error = %v", err)
		}
	}
}

func resultNames(r Result) []string {
	names := make([]string, len(r.Items))
	for i, it := range r.Items {
		names[i] = it.Connection.Name
	}
	return names
}

func TestSearchEmptyStore(t *testing.T) {
	f := setupEngine(t)

	_, err := f.engine.Search(context.Background(), "web")
	if !bssherrors.HasCode(err, bssherrors.NotFound) {
		t.Errorf("Search() error = %v, want NOT_FOUND", err)
	}
}

func TestSearchRankedOrderAndUniqueness(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "web-prod-server", time.Hour)
	f.addConnection(t, "web-staging", 48*time.Hour)
	f.addConnection(t, "webmail", -1)
	f.addConnection(t, "database", time.Minute)

	res, err := f.engine.Search(context.Background(), "web")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Mode != ModeRanked {
		t.Fatalf("Mode = %s, want %s", res.Mode, ModeRanked)
	}
	if len(res.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(res.Items))
	}

	seen := map[string]bool{}
	for i, it := range res.Items {
		if seen[it.Connection.ID] {
			t.Errorf("duplicate connection %s in results", it.Connection.Name)
		}
		seen[it.Connection.ID] = true
		if i > 0 && res.Items[i-1].Score < it.Score {
			t.Errorf("results not sorted: %v before %v",
				res.Items[i-1].Score, it.Score)
		}
	}
}

func TestSearchExactMatchFirst(t *testing.T) {
	f := setupEngine(t)
	exact := f.addConnection(t, "prod", -1)
	hot := f.addConnection(t, "prod-gateway", time.Hour)
	f.addSessions(t, hot.ID, 20, 0)

	res, err := f.engine.Search(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := res.Items[0].Connection.ID; got != exact.ID {
		t.Errorf("first result = %s, want exact match %s",
			res.Items[0].Connection.Name, "prod")
	}
	if res.Items[0].Tier != TierExact {
		t.Errorf("first tier = %s, want %s", res.Items[0].Tier, TierExact)
	}
}

func TestSearchUsageBreaksTies(t *testing.T) {
	f := setupEngine(t)
	a := f.addConnection(t, "web-alpha", time.Hour)
	b := f.addConnection(t, "web-beta", 30*24*time.Hour)
	f.addSessions(t, a.ID, 10, 0)
	f.addSessions(t, b.ID, 1, 0)

	res, err := f.engine.Search(context.Background(), "web")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []string{"web-alpha", "web-beta"}
	got := resultNames(res)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if res.Items[0].Score <= res.Items[1].Score {
		t.Errorf("score(%s) = %v not above score(%s) = %v",
			a.Name, res.Items[0].Score, b.Name, res.Items[1].Score)
	}
}

func TestSearchSmushedQuery(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "web-prod-server", time.Hour)
	f.addConnection(t, "web-staging", time.Hour)

	res, err := f.engine.Search(context.Background(), "webprod")
	if err != nil {
		t.Fatalf("Search(webprod) error = %v", err)
	}
	if got := resultNames(res); len(got) != 1 || got[0] != "web-prod-server" {
		t.Errorf("Search(webprod) = %v, want [web-prod-server]", got)
	}

	res, err = f.engine.Search(context.Background(), "web")
	if err != nil {
		t.Fatalf("Search(web) error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("Search(web) returned %d items, want 2", len(res.Items))
	}
}

func TestSearchEmptyQueryFallsBackToRecent(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "older", 48*time.Hour)
	f.addConnection(t, "newest", time.Hour)
	f.addConnection(t, "never", -1)

	res, err := f.engine.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Mode != ModeRecent {
		t.Fatalf("Mode = %s, want %s", res.Mode, ModeRecent)
	}

	want := []string{"newest", "older", "never"}
	got := resultNames(res)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestSearchNoMatchFallsBackToRecent(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "alpha", time.Hour)

	res, err := f.engine.Search(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Mode != ModeRecent {
		t.Errorf("Mode = %s, want %s", res.Mode, ModeRecent)
	}
	if len(res.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(res.Items))
	}
}

func TestSearchTruncatesToMaxResults(t *testing.T) {
	f := setupEngine(t)
	cfg := config.Default()
	cfg.MaxResults = 2
	f.engine = New(f.conns, f.sessions, cfg, logging.Discard())
	f.engine.now = func() time.Time { return f.now }

	f.addConnection(t, "node-1", time.Hour)
	f.addConnection(t, "node-2", 2*time.Hour)
	f.addConnection(t, "node-3", 3*time.Hour)

	res, err := f.engine.Search(context.Background(), "node")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(res.Items))
	}
}

func TestSearchTieBreaksOnLastUsedThenName(t *testing.T) {
	f := setupEngine(t)
	// Identical stats and tier: only the tie-break chain distinguishes them.
	f.addConnection(t, "app-b", -1)
	f.addConnection(t, "app-a", -1)
	f.addConnection(t, "app-c", time.Hour)

	res, err := f.engine.Search(context.Background(), "app")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []string{"app-c", "app-a", "app-b"}
	got := resultNames(res)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSearchScoreComponents(t *testing.T) {
	f := setupEngine(t)
	conn := f.addConnection(t, "web", time.Hour)
	f.addSessions(t, conn.ID, 3, 0)
	f.addSessions(t, conn.ID, 1, 255)

	res, err := f.engine.Search(context.Background(), "web")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	it := res.Items[0]

	if it.Tier != TierExact {
		t.Errorf("Tier = %s, want %s", it.Tier, TierExact)
	}
	if it.Score <= 0 || it.Score > 1 {
		t.Errorf("Score = %v, want in (0,1]", it.Score)
	}
	for _, key := range []string{"prior", "likelihood", "recency", "success"} {
		if _, ok := it.Breakdown[key]; !ok {
			t.Errorf("Breakdown missing %q", key)
		}
	}
	// 4 uses out of 4 total with alpha=1 and one connection:
	// (4+1)/(4+1) = 1.0, weighted by 0.2.
	if got := it.Breakdown["prior"]; !almost(got, 0.2) {
		t.Errorf("prior component = %v, want 0.2", got)
	}
	// 3 successes, 1 failure, beta=1: (3+1)/(4+2) = 2/3, weighted by 0.15.
	if got := it.Breakdown["success"]; !almost(got, 0.15*2.0/3.0) {
		t.Errorf("success component = %v, want %v", got, 0.15*2.0/3.0)
	}
}

func TestRecencyHalfLife(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "fresh", 0)
	f.addConnection(t, "week-old", 168*time.Hour)
	f.addConnection(t, "never-used", -1)

	res, err := f.engine.Search(context.Background(), "e")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	rec := map[string]float64{}
	for _, it := range res.Items {
		rec[it.Connection.Name] = it.Breakdown["recency"]
	}

	if !almost(rec["fresh"], 0.25) {
		t.Errorf("recency(fresh) = %v, want 0.25", rec["fresh"])
	}
	// One half-life elapsed: half the fresh contribution.
	if !almost(rec["week-old"], 0.125) {
		t.Errorf("recency(week-old) = %v, want 0.125", rec["week-old"])
	}
	if rec["never-used"] != 0 {
		t.Errorf("recency(never-used) = %v, want 0", rec["never-used"])
	}
}

func TestRecent(t *testing.T) {
	f := setupEngine(t)
	f.addConnection(t, "b-old", 72*time.Hour)
	f.addConnection(t, "a-new", time.Hour)
	f.addConnection(t, "c-never", -1)

	conns, err := f.engine.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("len = %d, want 2", len(conns))
	}
	if conns[0].Name != "a-new" || conns[1].Name != "b-old" {
		t.Errorf("Recent() = [%s %s], want [a-new b-old]", conns[0].Name, conns[1].Name)
	}
}

func almost(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
