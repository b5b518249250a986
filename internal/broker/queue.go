package broker

import "context"

// Queue adapts a Store to the SSE Gateway's narrow TaskEnqueuer
// interface: the Gateway only ever needs to enqueue and never reads
// the id back, since it rediscovers task state by polling the event
// store, not the broker.
type Queue struct {
	store Store
}

// NewQueue wraps a Store for the Gateway side of the C9/C10 boundary.
func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue satisfies internal/ssegateway.TaskEnqueuer.
func (q *Queue) Enqueue(ctx context.Context, sessionID string) error {
	_, err := q.store.Enqueue(ctx, sessionID)
	return err
}
