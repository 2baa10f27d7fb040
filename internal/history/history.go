// Package history computes per-connection usage statistics from session
// records. Statistics are recomputed from the full session list on demand;
// no counters are cached that could drift from the store.
package history

import (
	"time"

	"bssh/internal/storage"
)

// Stats aggregates one connection's session history.
type Stats struct {
	UseCount           int        `json:"useCount"`
	SuccessCount       int        `json:"successCount"`
	FailureCount       int        `json:"failureCount"`
	AvgDurationSeconds float64    `json:"avgDurationSeconds"`
	LastUsed           *time.Time `json:"lastUsed,omitempty"`
}

// Aggregate folds session records into usage statistics.
//
// A launch counts as a use immediately, so active sessions are included in
// UseCount. Stale sessions are not: their process ended unobserved, so they
// count against the success rate instead. Average duration covers only
// sessions with a recorded end timestamp.
func Aggregate(sessions []storage.Session) Stats {
	var st Stats
	var durationSum float64
	var ended int

	for _, s := range sessions {
		switch s.Status {
		case storage.SessionActive:
			st.UseCount++
		case storage.SessionCompleted:
			st.UseCount++
			if s.ExitCode != nil && *s.ExitCode == 0 {
				st.SuccessCount++
			} else if s.ExitCode != nil {
				st.FailureCount++
			}
		case storage.SessionFailed:
			st.UseCount++
			st.FailureCount++
		case storage.SessionStale:
			st.FailureCount++
		}

		if s.EndedAt != nil {
			durationSum += s.EndedAt.Sub(s.StartedAt).Seconds()
			ended++
		}

		if st.LastUsed == nil || s.StartedAt.After(*st.LastUsed) {
			started := s.StartedAt
			st.LastUsed = &started
		}
	}

	if ended > 0 {
		st.AvgDurationSeconds = durationSum / float64(ended)
	}

	return st
}

// SuccessRate returns the beta-smoothed success ratio in [0,1]:
// (successes+beta) / (successes+failures+2*beta). With no recorded outcomes
// the ratio is the neutral prior 0.5.
func SuccessRate(successCount, failureCount int, beta float64) float64 {
	denom := float64(successCount+failureCount) + 2*beta
	if denom == 0 {
		return 0.5
	}
	return (float64(successCount) + beta) / denom
}

// GroupStats aggregates every connection's statistics from one session
// snapshot, keyed by connection id.
func GroupStats(sessions []storage.Session) map[string]Stats {
	grouped := make(map[string][]storage.Session)
	for _, s := range sessions {
		grouped[s.ConnectionID] = append(grouped[s.ConnectionID], s)
	}

	stats := make(map[string]Stats, len(grouped))
	for id, group := range grouped {
		stats[id] = Aggregate(group)
	}
	return stats
}
