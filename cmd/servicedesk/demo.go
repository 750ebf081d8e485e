package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/agents"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/config"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/health"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/cache"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/testutil"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/transport"
)

// demoDrainTimeout bounds how long the demo waits for the pipeline to
// process everything it generated.
const demoDrainTimeout = 60 * time.Second

// demoReport is the JSON document the demo prints when the run completes.
type demoReport struct {
	TicketsGenerated int                      `json:"tickets_generated"`
	Summary          agents.Summary           `json:"summary"`
	Insights         []agents.CategoryInsight `json:"insights"`
	Recommendations  []agents.Recommendation  `json:"recommendations"`
	Health           health.Report            `json:"health"`
}

// runDemo runs the whole pipeline in-process over the memory transport:
// generate tickets, drain them through triage to resolution, feed synthetic
// satisfaction feedback back in, and print the aggregate report.
func runDemo(ctx context.Context, cfg *config.Config, logger *slog.Logger, tickets int, seed uint64) error {
	registry := metric.NewRegistry()
	metrics := registry.Core()
	tracker := health.NewTracker()

	tr := transport.NewMemory(
		transport.WithMemoryLogger(logger),
		transport.WithMemoryMetrics(metrics),
	)
	defer func() { _ = tr.Close() }()

	resultCache, err := cache.NewMemory[[]ticket.KnowledgeResult](ctx,
		cache.WithDefaultTTL[[]ticket.KnowledgeResult](cfg.Cache.TTL),
		cache.WithLogger[[]ticket.KnowledgeResult](logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = resultCache.Close() }()

	router, err := buildRouter(tr, cfg, logger, metrics, tracker)
	if err != nil {
		return err
	}

	stages, err := agents.RegisterAll(agents.Deps{
		Router:     router,
		Classifier: agents.NewRuleClassifier(),
		Searcher:   agents.NewStaticSearcher(),
		Cache:      resultCache,
		CacheTTL:   cfg.Cache.TTL,
		Tracker:    tracker,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	checker, err := buildChecker(router, tr, nil, resultCache, cfg, logger, metrics, tracker)
	if err != nil {
		return err
	}

	if err := router.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = router.Stop(5 * time.Second) }()

	faker := testutil.NewFaker(seed)
	generated := faker.Tickets(tickets)

	logger.Info("demo started", "tickets", tickets, "seed", seed)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, tk := range generated {
		g.Go(func() error {
			env, err := ticket.NewEnvelope(tk, agents.SubjectTriage)
			if err != nil {
				return err
			}
			return router.Enqueue(gCtx, env)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("enqueue demo tickets: %w", err)
	}

	if err := waitForTotal(ctx, stages, tickets); err != nil {
		return err
	}

	// Ticket owners rate the outcome; the learning stage folds the scores
	// into per-category insights. The generated tickets never saw the
	// pipeline's mutations, so classify them locally and mark most as
	// resolved to shape the ratings.
	classifier := agents.NewRuleClassifier()
	feedbackSent := 0
	for i, tk := range generated {
		cls, err := classifier.Classify(ctx, tk.Title, tk.Description, "")
		if err != nil {
			return err
		}
		tk.Category = cls.Category
		if i%4 != 0 {
			tk.Status = ticket.StatusResolved
		}

		fb := faker.Feedback(tk)
		env, err := ticket.NewFeedbackEnvelope(fb, agents.SubjectLearning)
		if err != nil {
			return err
		}
		if err := router.Enqueue(ctx, env); err != nil {
			return err
		}
		feedbackSent++
	}

	if err := waitForFeedback(ctx, stages, feedbackSent); err != nil {
		return err
	}

	report := demoReport{
		TicketsGenerated: tickets,
		Summary:          stages.Analytics.Summary(),
		Insights:         stages.Learning.Insights(),
		Recommendations:  stages.Learning.Recommendations(),
		Health:           checker.Check(ctx),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	logger.Info("demo finished",
		"resolved", report.Summary.Resolved,
		"escalated", report.Summary.Escalated,
		"health", report.Health.State)
	return nil
}

// waitForTotal polls the analytics summary until every generated ticket
// reached a terminal stage.
func waitForTotal(ctx context.Context, stages *agents.Stages, want int) error {
	deadline := time.Now().Add(demoDrainTimeout)
	for time.Now().Before(deadline) {
		if stages.Analytics.Summary().Total >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("pipeline drained %d of %d tickets before timeout",
		stages.Analytics.Summary().Total, want)
}

// waitForFeedback polls the learning insights until every feedback message
// was folded in.
func waitForFeedback(ctx context.Context, stages *agents.Stages, want int) error {
	deadline := time.Now().Add(demoDrainTimeout)
	for time.Now().Before(deadline) {
		total := 0
		for _, in := range stages.Learning.Insights() {
			total += in.FeedbackCount
		}
		if total >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("learning stage received fewer than %d feedback messages before timeout", want)
}
