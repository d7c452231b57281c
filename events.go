package nanocol

import (
	"context"

	"github.com/autom8ter/machine/v4"
)

// Event channel names, subscribable and removable per spec.md §6 "Events".
const (
	ChannelInsert      = "insert"
	ChannelUpdate      = "update"
	ChannelDelete      = "delete"
	ChannelPreInsert   = "pre-insert"
	ChannelPreUpdate   = "pre-update"
	ChannelError       = "error"
	ChannelClose       = "close"
	ChannelFlushBuffer = "flushbuffer"
	ChannelWarning     = "warning"
)

// EventSink is an additional transport for change notifications, such as a
// cross-process notifier (see notify.RedisSink), that Collection publishes to
// right after the in-process eventBus.
type EventSink interface {
	Publish(ctx context.Context, channel string, body any) error
}

// InsertEvent is the payload published on ChannelInsert/ChannelPreInsert
type InsertEvent struct {
	Documents Documents
}

// UpdateEvent is the payload published on ChannelUpdate/ChannelPreUpdate,
// carrying both revisions per spec.md §4.1 ("the latter carries both new and old")
type UpdateEvent struct {
	Before Documents
	After  Documents
}

// DeleteEvent is the payload published on ChannelDelete
type DeleteEvent struct {
	Documents Documents
}

// ErrorEvent is the payload published on ChannelError when a mutation fails
type ErrorEvent struct {
	Err error
}

// eventBus wraps a machine.Machine, dispatching synchronously or via
// machine.Go depending on the collection's asyncListeners flag - the "per
// collection scheduling policy" design note in spec.md §9.
type eventBus struct {
	m     machine.Machine
	async bool
}

func newEventBus(async bool) *eventBus {
	return &eventBus{m: machine.New(), async: async}
}

// publish dispatches msg on channel. Synchronous dispatch runs inline and can
// participate in the caller's error/rollback path; asynchronous dispatch is
// fire-and-forget to the machine's own goroutine pool.
func (b *eventBus) publish(ctx context.Context, channel string, body any) {
	msg := machine.Message{Channel: channel, Body: body}
	if b.async {
		b.m.Go(ctx, func(ctx context.Context) error {
			b.m.Publish(ctx, msg)
			return nil
		})
		return
	}
	b.m.Publish(ctx, msg)
}

// subscribe registers fn against channel until it returns false or ctx is done
func (b *eventBus) subscribe(ctx context.Context, channel string, fn func(ctx context.Context, body any) (bool, error)) error {
	return b.m.Subscribe(ctx, channel, func(ctx context.Context, msg machine.Message) (bool, error) {
		return fn(ctx, msg.Body)
	})
}

// close publishes ChannelClose and waits for in-flight async dispatches to drain
func (b *eventBus) close(ctx context.Context) {
	b.m.Publish(ctx, machine.Message{Channel: ChannelClose})
	b.m.Wait()
}
