package api

import (
	"context"

	"satchel/internal/syncqueue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...syncqueue.Status) ([]*syncqueue.Item, error)
	Stats(ctx context.Context) (syncqueue.Stats, error)
	GetByID(ctx context.Context, id string) (*syncqueue.Item, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...syncqueue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts.
func (s *QueueService) Stats(ctx context.Context) (QueueStats, error) {
	if s == nil || s.store == nil {
		return QueueStats{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return FromQueueStats(stats), nil
}

// Describe fetches a single queue item. A missing id returns nil without error.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}
