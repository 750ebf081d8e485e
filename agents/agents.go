package agents

import (
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/health"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/cache"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// DefaultKnowledgeTTL bounds how long cached knowledge lookups keep
// serving before the searcher is consulted again.
const DefaultKnowledgeTTL = 15 * time.Minute

// Deps carries everything the pipeline stages need. Router, Classifier
// and Searcher are required; the rest defaults.
type Deps struct {
	Router     *dispatch.Router
	Classifier Classifier
	Searcher   Searcher

	// Cache holds knowledge lookup results. Nil disables caching.
	Cache    cache.Cache[[]ticket.KnowledgeResult]
	CacheTTL time.Duration

	// Rules routes enriched tickets; the zero value takes DefaultRules.
	Rules Rules

	Tracker *health.Tracker
	Logger  *slog.Logger
}

// Stages bundles the constructed pipeline so callers can reach the
// aggregating ends after registration.
type Stages struct {
	Triage     *Triage
	Knowledge  *Knowledge
	Automation *Automation
	Escalation *Escalation
	Analytics  *Analytics
	Learning   *Learning
}

// RegisterAll builds the six pipeline stages and registers each on its
// subject, tuning delivery per stage. The triage and knowledge stages
// run wider than the terminal aggregators, which serialize on a single
// worker so their counters never contend.
func RegisterAll(deps Deps) (*Stages, error) {
	if deps.Router == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RegisterAll", "nil router")
	}
	if deps.Classifier == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RegisterAll", "nil classifier")
	}
	if deps.Searcher == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RegisterAll", "nil searcher")
	}

	rules := deps.Rules
	if rules.isZero() {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultKnowledgeTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enqueue := deps.Router.Enqueue
	stages := &Stages{
		Triage:     NewTriage(deps.Classifier, enqueue, logger),
		Knowledge:  NewKnowledge(deps.Searcher, deps.Cache, ttl, rules, enqueue, logger),
		Automation: NewAutomation(enqueue, logger),
		Escalation: NewEscalation(enqueue, logger),
		Analytics:  NewAnalytics(deps.Tracker, logger),
		Learning:   NewLearning(logger),
	}

	registrations := []struct {
		subject string
		handler dispatch.Handler
		opts    dispatch.HandlerOptions
	}{
		{SubjectTriage, stages.Triage.Handle, dispatch.HandlerOptions{MaxConcurrent: 8}},
		{SubjectKnowledge, stages.Knowledge.Handle, dispatch.HandlerOptions{MaxConcurrent: 8}},
		{SubjectAutomation, stages.Automation.Handle, dispatch.HandlerOptions{MaxConcurrent: 4}},
		{SubjectEscalation, stages.Escalation.Handle, dispatch.HandlerOptions{MaxConcurrent: 4}},
		{SubjectAnalytics, stages.Analytics.Handle, dispatch.HandlerOptions{MaxConcurrent: 1}},
		{SubjectLearning, stages.Learning.Handle, dispatch.HandlerOptions{MaxConcurrent: 1}},
	}
	for _, reg := range registrations {
		if err := deps.Router.RegisterHandler(reg.subject, reg.handler, reg.opts); err != nil {
			return nil, err
		}
	}
	return stages, nil
}
