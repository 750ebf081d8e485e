package agents

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/health"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// Tracker signals the analytics stage records.
const (
	SignalTicketsProcessed = "tickets.processed"
	SignalResolutionMS     = "tickets.resolution_ms"

	signalCategoryPrefix = "tickets.by_category."
)

// Summary is a point-in-time snapshot of pipeline output.
type Summary struct {
	Total      int                       `json:"total"`
	Resolved   int                       `json:"resolved"`
	Escalated  int                       `json:"escalated"`
	ByCategory map[ticket.Category]int   `json:"by_category"`
	ByPriority map[envelope.Priority]int `json:"by_priority"`

	// AvgResolution is the mean submitted-to-resolved time of resolved
	// tickets.
	AvgResolution time.Duration `json:"avg_resolution"`
}

// Analytics consumes tickets leaving the pipeline and keeps aggregate
// counts, feeding the tracker so throughput shows up in health reports.
type Analytics struct {
	tracker *health.Tracker
	logger  *slog.Logger

	mu              sync.Mutex
	total           int
	resolved        int
	escalated       int
	byCategory      map[ticket.Category]int
	byPriority      map[envelope.Priority]int
	resolutionTotal time.Duration
}

// NewAnalytics creates the analytics stage. A nil tracker disables health
// signal recording but keeps the summary.
func NewAnalytics(tracker *health.Tracker, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		tracker:    tracker,
		logger:     logger,
		byCategory: make(map[ticket.Category]int),
		byPriority: make(map[envelope.Priority]int),
	}
}

// Handle records one terminal-stage ticket. Analytics never forwards;
// tickets end here.
func (s *Analytics) Handle(_ context.Context, env *envelope.Envelope) dispatch.Outcome {
	t, err := ticket.Decode(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedTicket, err)
	}

	var resolution time.Duration
	if !t.ResolvedAt.IsZero() {
		resolution = t.ResolvedAt.Sub(t.SubmittedAt)
	}

	s.mu.Lock()
	s.total++
	s.byCategory[t.Category]++
	s.byPriority[t.Priority]++
	switch t.Status {
	case ticket.StatusResolved, ticket.StatusClosed:
		s.resolved++
		s.resolutionTotal += resolution
	default:
		s.escalated++
	}
	s.mu.Unlock()

	if s.tracker != nil {
		s.tracker.Record(SignalTicketsProcessed, 1)
		s.tracker.Record(signalCategoryPrefix+t.Category.String(), 1)
		if resolution > 0 {
			s.tracker.Record(SignalResolutionMS, float64(resolution.Milliseconds()))
		}
	}

	s.logger.Debug("ticket recorded",
		"ticket_id", t.ID,
		"status", t.Status,
		"category", t.Category)
	return dispatch.Success()
}

// Summary snapshots the aggregates.
func (s *Analytics) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		Total:      s.total,
		Resolved:   s.resolved,
		Escalated:  s.escalated,
		ByCategory: make(map[ticket.Category]int, len(s.byCategory)),
		ByPriority: make(map[envelope.Priority]int, len(s.byPriority)),
	}
	for category, n := range s.byCategory {
		summary.ByCategory[category] = n
	}
	for priority, n := range s.byPriority {
		summary.ByPriority[priority] = n
	}
	if s.resolved > 0 {
		summary.AvgResolution = s.resolutionTotal / time.Duration(s.resolved)
	}
	return summary
}
