package search

import (
	"log/slog"
	"strconv"
	"sync"

	"storyforest/api/internal/metrics"
	"storyforest/api/internal/story"
)

// Service mirrors node changes into the index in the background. A nil
// *Service, or one without an indexer, does nothing.
type Service struct {
	index  Indexer
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewService(index Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, logger: logger}
}

func (s *Service) enabled() bool {
	return s != nil && s.index != nil && s.index.Healthy()
}

// Sync indexes item when everyone may read it and removes it otherwise.
func (s *Service) Sync(item story.Item) {
	if !s.enabled() {
		return
	}
	if !item.Status.Public() {
		s.Remove(item.ID)
		return
	}
	record := RecordFor(item)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.UpsertNodes([]NodeRecord{record}); err != nil {
			metrics.SearchIndexErrors.WithLabelValues("upsert").Inc()
			s.logger.Warn("index node", "node_id", record.ID, "error", err)
		}
	}()
}

// Remove drops a node from the index.
func (s *Service) Remove(nodeID int64) {
	if !s.enabled() {
		return
	}
	id := strconv.FormatInt(nodeID, 10)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.DeleteNode(id); err != nil {
			metrics.SearchIndexErrors.WithLabelValues("delete").Inc()
			s.logger.Warn("remove node from index", "node_id", id, "error", err)
		}
	}()
}

// Wait blocks until queued index updates finish.
func (s *Service) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}
