package domain

import "time"

// SearchOutcome classifies how a search finished.
type SearchOutcome string

const (
	OutcomeSuccess  SearchOutcome = "success"
	OutcomeCacheHit SearchOutcome = "cache_hit"
	OutcomeInvalid  SearchOutcome = "invalid"
	OutcomeFailed   SearchOutcome = "failed"
	OutcomeStale    SearchOutcome = "superseded"
)

// SearchAudit describes one finished search for the audit log.
type SearchAudit struct {
	SessionID    string
	RequestID    string
	Provider     Provider
	Query        string
	Outcome      SearchOutcome
	CacheHit     bool
	Attempts     int
	Duration     time.Duration
	ErrorMessage string
	FinishedAt   time.Time
}
