package search

import (
	"context"
	"log/slog"

	"mojocode/api/internal/logger"
)

// Indexer pushes conversations into the primary index.
type Indexer interface {
	IndexConversations(records []ConversationRecord) error
	DeleteConversation(id string) error
	Healthy() bool
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
	loader   recordLoader
	log      *slog.Logger
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]ConversationRecord, error)
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{log: logger.WithComponent("search")}
	if meili != nil {
		s.primary = meili
		s.indexer = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

// Search tries the primary index if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("meilisearch error, falling back to pgfts", "error", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("pgfts error", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexConversation indexes a conversation (fire-and-forget).
func (s *Service) IndexConversation(record ConversationRecord) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	go func() {
		if err := s.indexer.IndexConversations([]ConversationRecord{record}); err != nil {
			s.log.Warn("index conversation", "conversation_id", record.ID, "error", err)
		}
	}()
}

// DeleteConversation removes a conversation from the index (fire-and-forget).
func (s *Service) DeleteConversation(id string) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	go func() {
		if err := s.indexer.DeleteConversation(id); err != nil {
			s.log.Warn("delete conversation", "conversation_id", id, "error", err)
		}
	}()
}

// ReindexAllFromPG pushes every stored conversation into the primary index.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.indexer == nil || !s.indexer.Healthy() || s.loader == nil {
		return
	}
	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("reindex load failed", "error", err)
		return
	}
	if err := s.indexer.IndexConversations(records); err != nil {
		s.log.Error("reindex conversations", "error", err)
		return
	}
	s.log.Info("reindexed conversations", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
