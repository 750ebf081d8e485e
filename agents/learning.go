package agents

import (
	"context"
	"log/slog"
	"sync"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// Satisfaction and success thresholds below which a category draws a
// quality recommendation.
const (
	lowSatisfactionMean = 3.0
	lowSuccessRate      = 0.5
)

// CategoryInsight aggregates feedback for one ticket category.
type CategoryInsight struct {
	Category         ticket.Category `json:"category"`
	FeedbackCount    int             `json:"feedback_count"`
	MeanSatisfaction float64         `json:"mean_satisfaction"`
	SuccessRate      float64         `json:"success_rate"`
}

// Recommendation pairs a category with a suggested corrective action.
type Recommendation struct {
	Category ticket.Category `json:"category"`
	Action   string          `json:"action"`
}

type categoryStats struct {
	count             int
	satisfactionTotal int
	successes         int
}

// Learning consumes feedback messages and derives per-category quality
// recommendations from satisfaction scores and resolution success rates.
type Learning struct {
	logger *slog.Logger

	mu    sync.Mutex
	stats map[ticket.Category]*categoryStats
}

// NewLearning creates the learning stage.
func NewLearning(logger *slog.Logger) *Learning {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learning{
		logger: logger,
		stats:  make(map[ticket.Category]*categoryStats),
	}
}

// Handle folds one feedback message into the per-category aggregates.
func (s *Learning) Handle(_ context.Context, env *envelope.Envelope) dispatch.Outcome {
	fb, err := ticket.DecodeFeedback(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedFeedback, err)
	}

	s.mu.Lock()
	cs := s.stats[fb.Category]
	if cs == nil {
		cs = &categoryStats{}
		s.stats[fb.Category] = cs
	}
	cs.count++
	cs.satisfactionTotal += fb.Satisfaction
	if fb.ResolutionSuccessful {
		cs.successes++
	}
	s.mu.Unlock()

	s.logger.Debug("feedback recorded",
		"ticket_id", fb.TicketID,
		"category", fb.Category,
		"satisfaction", fb.Satisfaction)
	return dispatch.Success()
}

// Insights snapshots the per-category aggregates.
func (s *Learning) Insights() []CategoryInsight {
	s.mu.Lock()
	defer s.mu.Unlock()

	insights := make([]CategoryInsight, 0, len(s.stats))
	for _, category := range ticket.Categories() {
		cs := s.stats[category]
		if cs == nil || cs.count == 0 {
			continue
		}
		insights = append(insights, CategoryInsight{
			Category:         category,
			FeedbackCount:    cs.count,
			MeanSatisfaction: float64(cs.satisfactionTotal) / float64(cs.count),
			SuccessRate:      float64(cs.successes) / float64(cs.count),
		})
	}
	return insights
}

// Recommendations derives corrective actions from the current insights.
// Categories whose mean satisfaction falls below 3.0 draw a response
// quality action; those resolving successfully less than half the time
// draw a knowledge base action; healthy categories get monitoring only.
func (s *Learning) Recommendations() []Recommendation {
	recs := make([]Recommendation, 0)
	for _, in := range s.Insights() {
		switch {
		case in.MeanSatisfaction < lowSatisfactionMean:
			recs = append(recs, Recommendation{
				Category: in.Category,
				Action:   "Improve response quality and accuracy",
			})
		case in.SuccessRate < lowSuccessRate:
			recs = append(recs, Recommendation{
				Category: in.Category,
				Action:   "Enhance knowledge base coverage",
			})
		default:
			recs = append(recs, Recommendation{
				Category: in.Category,
				Action:   "Continue monitoring",
			})
		}
	}
	return recs
}
