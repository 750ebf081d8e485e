package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/cache"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// knowledgeKeyspace prefixes every knowledge cache key.
const knowledgeKeyspace = "knowledge"

// Knowledge enriches triaged tickets with ranked articles, cache-aside: it
// consults the result cache first, queries the searcher on a miss, and
// populates the cache with the configured TTL. Cache failures are soft -
// the stage falls through to the searcher and keeps going.
type Knowledge struct {
	searcher Searcher
	cache    cache.Cache[[]ticket.KnowledgeResult]
	ttl      time.Duration
	rules    Rules
	enqueue  EnqueueFunc
	logger   *slog.Logger
}

// NewKnowledge creates the knowledge stage. A nil cache disables caching;
// every lookup then hits the searcher.
func NewKnowledge(
	searcher Searcher,
	resultCache cache.Cache[[]ticket.KnowledgeResult],
	ttl time.Duration,
	rules Rules,
	enqueue EnqueueFunc,
	logger *slog.Logger,
) *Knowledge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Knowledge{
		searcher: searcher,
		cache:    resultCache,
		ttl:      ttl,
		rules:    rules,
		enqueue:  enqueue,
		logger:   logger,
	}
}

// cacheKey builds the normalized fingerprint for a ticket's lookup.
func (s *Knowledge) cacheKey(t *ticket.Ticket) string {
	return cache.Fingerprint(knowledgeKeyspace, t.Category.String(), t.Title)
}

// InvalidateCategory drops every cached lookup for a category. Producers
// call it when new knowledge lands so stale rankings stop serving.
func (s *Knowledge) InvalidateCategory(ctx context.Context, category ticket.Category) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.InvalidatePrefix(ctx, cache.Fingerprint(knowledgeKeyspace, category.String())+":")
}

// Handle enriches one triaged ticket and routes it onward through the
// routing table.
func (s *Knowledge) Handle(ctx context.Context, env *envelope.Envelope) dispatch.Outcome {
	t, err := ticket.Decode(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedTicket, err)
	}

	results, err := s.lookup(ctx, t)
	if err != nil {
		return dispatch.RetryableFailure(ReasonSearchFailed, err)
	}
	t.KnowledgeResults = results

	if err := t.Advance(ticket.StatusKnowledgeEnriched); err != nil {
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	next, err := s.rules.NextSubject(t)
	if err != nil {
		// The table is validated at startup; reaching this means the ticket
		// carries a category the table has never seen.
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	if err := forwardTicket(ctx, s.enqueue, t, next, env); err != nil {
		return dispatch.RetryableFailure(ReasonForwardFailed, err)
	}

	s.logger.Info("ticket enriched",
		"ticket_id", t.ID,
		"results", len(results),
		"next", next)
	return dispatch.Success()
}

// lookup is the cache-aside path: get, on miss query and set.
func (s *Knowledge) lookup(ctx context.Context, t *ticket.Ticket) ([]ticket.KnowledgeResult, error) {
	key := s.cacheKey(t)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("knowledge cache read failed", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	query := t.Title + " " + t.Description
	results, err := s.searcher.Query(ctx, query, map[string]string{"category": t.Category.String()})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, results, s.ttl); err != nil {
			s.logger.Warn("knowledge cache write failed", "key", key, "error", err)
		}
	}
	return results, nil
}
