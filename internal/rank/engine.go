package rank

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"bssh/internal/config"
	bssherrors "bssh/internal/errors"
	"bssh/internal/history"
	"bssh/internal/storage"
)

// ConnectionSource is the slice of the store the engine reads profiles from.
// *storage.ConnectionRepository satisfies it.
type ConnectionSource interface {
	List() ([]storage.Connection, error)
	ListRecent(k int) ([]storage.Connection, error)
}

// SessionSource provides the session history the usage signals are derived
// from. *storage.SessionRepository satisfies it.
type SessionSource interface {
	ListAll() ([]storage.Session, error)
}

// Mode tells how a result list was produced.
type Mode string

const (
	// ModeRanked means the items were scored against the query
	ModeRanked Mode = "ranked"
	// ModeRecent means the query matched nothing (or was empty) and the items
	// are a most-recently-used fallback
	ModeRecent Mode = "recent"
)

// Scored is one ranked connection. Breakdown holds the weighted score
// components (prior, likelihood, recency, success) for inspection; it is nil
// in recent mode.
type Scored struct {
	Connection storage.Connection
	Score      float64
	Tier       Tier
	Breakdown  map[string]float64
}

// Result is the outcome of a Search call.
type Result struct {
	Mode  Mode
	Items []Scored
}

// params are the numeric knobs of the ranking model, copied out of the
// configuration once at construction.
type params struct {
	priorWeight      float64
	likelihoodWeight float64
	recencyWeight    float64
	successWeight    float64
	laplaceAlpha     float64
	successBeta      float64
	decayLambda      float64
	maxResults       int
}

// Engine ranks stored connections against queries. It is read-only with
// respect to the store and safe for sequential reuse across queries.
type Engine struct {
	connections ConnectionSource
	sessions    SessionSource
	p           params
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a ranking engine on top of the given store slices. The
// configuration must already be validated.
func New(connections ConnectionSource, sessions SessionSource, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		connections: connections,
		sessions:    sessions,
		p: params{
			priorWeight:      cfg.PriorWeight,
			likelihoodWeight: cfg.LikelihoodWeight,
			recencyWeight:    cfg.RecencyWeight,
			successWeight:    cfg.SuccessWeight,
			laplaceAlpha:     cfg.LaplaceAlpha,
			successBeta:      cfg.SuccessBeta,
			decayLambda:      cfg.DecayLambda,
			maxResults:       cfg.MaxResults,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Search scores every stored connection against the query and returns the
// matches ordered best-first, truncated to the configured maximum. An empty
// query, or a query matching nothing, falls back to the most-recently-used
// list (Mode is ModeRecent). Searching an empty store is a NotFound error.
func (e *Engine) Search(ctx context.Context, query string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	conns, err := e.connections.List()
	if err != nil {
		return Result{}, err
	}
	if len(conns) == 0 {
		return Result{}, bssherrors.New(bssherrors.NotFound, "no connections stored")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return e.recent(conns), nil
	}

	sessions, err := e.sessions.ListAll()
	if err != nil {
		return Result{}, err
	}
	stats := history.GroupStats(sessions)

	totalUses := 0
	for _, st := range stats {
		totalUses += st.UseCount
	}

	now := e.now()
	items := make([]Scored, 0, len(conns))
	for _, conn := range conns {
		m, ok := Score(query, Candidate{Name: conn.Name, Host: conn.Host, Tags: conn.Tags})
		if !ok {
			continue
		}
		items = append(items, e.score(conn, m, stats[conn.ID], totalUses, len(conns), now))
	}

	if len(items) == 0 {
		e.logger.Debug("query matched nothing, falling back to recent", "query", query)
		return e.recent(conns), nil
	}

	sortScored(items)
	if len(items) > e.p.maxResults {
		items = items[:e.p.maxResults]
	}

	e.logger.Debug("ranked query",
		"query", query,
		"candidates", len(conns),
		"matches", len(items))

	return Result{Mode: ModeRanked, Items: items}, nil
}

// Recent returns the k most-recently-used connections without scoring.
// Never-used connections come last, ordered by name.
func (e *Engine) Recent(ctx context.Context, k int) ([]storage.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = e.p.maxResults
	}
	return e.connections.ListRecent(k)
}

// score combines the four ranking signals for one matched connection.
func (e *Engine) score(conn storage.Connection, m Match, st history.Stats, totalUses, totalConns int, now time.Time) Scored {
	// Laplace-smoothed usage share. With no history every connection gets
	// the same uniform prior instead of a division by zero.
	prior := (float64(st.UseCount) + e.p.laplaceAlpha) /
		(float64(totalUses) + e.p.laplaceAlpha*float64(totalConns))

	recency := 0.0
	if conn.LastUsed != nil {
		hours := now.Sub(*conn.LastUsed).Hours()
		if hours < 0 {
			hours = 0
		}
		recency = math.Exp(-e.p.decayLambda * hours)
	}

	success := history.SuccessRate(st.SuccessCount, st.FailureCount, e.p.successBeta)

	breakdown := map[string]float64{
		"prior":      e.p.priorWeight * prior,
		"likelihood": e.p.likelihoodWeight * m.Weight,
		"recency":    e.p.recencyWeight * recency,
		"success":    e.p.successWeight * success,
	}

	total := 0.0
	for _, v := range breakdown {
		total += v
	}

	return Scored{
		Connection: conn,
		Score:      total,
		Tier:       m.Tier,
		Breakdown:  breakdown,
	}
}

// recent wraps an already recency-ordered connection list as a fallback
// result.
func (e *Engine) recent(conns []storage.Connection) Result {
	k := e.p.maxResults
	if len(conns) < k {
		k = len(conns)
	}
	items := make([]Scored, k)
	for i := 0; i < k; i++ {
		items[i] = Scored{Connection: conns[i]}
	}
	return Result{Mode: ModeRecent, Items: items}
}

// sortScored orders items by score descending, breaking ties by last-used
// descending (never-used last) and then by name ascending. An exact name
// match outranks everything regardless of score; names are unique, so at
// most one exists per query. The ordering is total, so equal inputs always
// produce the same output.
func sortScored(items []Scored) {
	sort.Slice(items, func(i, j int) bool {
		if (items[i].Tier == TierExact) != (items[j].Tier == TierExact) {
			return items[i].Tier == TierExact
		}
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		li, lj := items[i].Connection.LastUsed, items[j].Connection.LastUsed
		switch {
		case li != nil && lj == nil:
			return true
		case li == nil && lj != nil:
			return false
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.After(*lj)
		}
		return items[i].Connection.Name < items[j].Connection.Name
	})
}
