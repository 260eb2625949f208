package queueaccess

import (
	"context"

	"satchel/internal/api"
	"satchel/internal/ipc"
	"satchel/internal/syncqueue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context) (api.QueueStats, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id string) (*api.QueueItem, error)
	ClearCompleted(ctx context.Context) (int64, error)
	Remove(ctx context.Context, ids []string) (int64, error)
	Retry(ctx context.Context) (RetryOutcome, error)
}

// RetryOutcome reports a retry request. Report is set when the daemon ran a
// drain immediately; Reset counts items returned to pending when only the
// store was available and the next drain will pick them up.
type RetryOutcome struct {
	Report *api.SyncReport
	Reset  int64
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(queue *syncqueue.Store) Access {
	return &storeAccess{queue: queue, service: api.NewQueueService(queue)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(_ context.Context) (api.QueueStats, error) {
	resp, err := a.client.QueueStats()
	if err != nil {
		return api.QueueStats{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	if resp == nil || !resp.Found {
		return nil, nil
	}
	return &resp.Item, nil
}

func (a *ipcAccess) ClearCompleted(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClearCompleted()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Remove(_ context.Context, ids []string) (int64, error) {
	resp, err := a.client.QueueRemove(ids)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Retry(_ context.Context) (RetryOutcome, error) {
	resp, err := a.client.QueueRetry()
	if err != nil {
		return RetryOutcome{}, err
	}
	return RetryOutcome{Report: resp}, nil
}

type storeAccess struct {
	queue   *syncqueue.Store
	service *api.QueueService
}

func (a *storeAccess) Stats(ctx context.Context) (api.QueueStats, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	var filters []syncqueue.Status
	for _, s := range statuses {
		if parsed, ok := syncqueue.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.queue.ClearCompleted(ctx)
}

func (a *storeAccess) Remove(ctx context.Context, ids []string) (int64, error) {
	var count int64
	for _, id := range ids {
		if err := a.queue.Remove(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (a *storeAccess) Retry(ctx context.Context) (RetryOutcome, error) {
	reset, err := a.queue.ResetFailed(ctx)
	if err != nil {
		return RetryOutcome{}, err
	}
	return RetryOutcome{Reset: reset}, nil
}
