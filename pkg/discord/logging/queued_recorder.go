package logging

import (
	"context"
	"fmt"

	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/task"
)

// Task types handled by QueuedRecorder.
const (
	TaskLogDeleted = "moderation.log_deleted"
	TaskLogEdited  = "moderation.log_edited"
)

// QueuedRecorder moves moderation log writes onto a task router so gateway
// handlers never wait on SQLite. Writes of one channel stay in order and a
// busy database is retried.
type QueuedRecorder struct {
	router *task.TaskRouter
	next   Recorder
}

// NewQueuedRecorder registers the write handlers on router.
func NewQueuedRecorder(router *task.TaskRouter, next Recorder) *QueuedRecorder {
	q := &QueuedRecorder{router: router, next: next}
	router.RegisterHandler(TaskLogDeleted, func(ctx context.Context, payload any) error {
		m, ok := payload.(storage.DeletedMessage)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		return q.next.LogDeletedMessage(ctx, m)
	})
	router.RegisterHandler(TaskLogEdited, func(ctx context.Context, payload any) error {
		m, ok := payload.(storage.EditedMessage)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		return q.next.LogEditedMessage(ctx, m)
	})
	return q
}

// LogDeletedMessage queues the row. The error only reports a failed enqueue.
func (q *QueuedRecorder) LogDeletedMessage(ctx context.Context, m storage.DeletedMessage) error {
	return q.router.Dispatch(ctx, task.Task{Type: TaskLogDeleted, Payload: m, GroupKey: m.ChannelID})
}

// LogEditedMessage queues the row like LogDeletedMessage.
func (q *QueuedRecorder) LogEditedMessage(ctx context.Context, m storage.EditedMessage) error {
	return q.router.Dispatch(ctx, task.Task{Type: TaskLogEdited, Payload: m, GroupKey: m.ChannelID})
}
