package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kursun12/gardorop-relay/internal/domain"
)

// mirrorOutbox hands accepted snapshots to a publisher from a single
// goroutine, so they leave in the order they were accepted. Only the newest
// pending snapshot is kept; older ones are superseded.
type mirrorOutbox struct {
	publisher domain.SnapshotPublisher
	pending   chan domain.Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func newMirrorOutbox(publisher domain.SnapshotPublisher) *mirrorOutbox {
	o := &mirrorOutbox{
		publisher: publisher,
		pending:   make(chan domain.Snapshot, 1),
		done:      make(chan struct{}),
	}
	go o.run()
	return o
}

// offer queues s without blocking. Must only be called from the hub goroutine.
func (o *mirrorOutbox) offer(s domain.Snapshot) {
	for {
		select {
		case o.pending <- s:
			return
		default:
		}
		select {
		case <-o.pending:
		default:
		}
	}
}

func (o *mirrorOutbox) run() {
	for {
		select {
		case s := <-o.pending:
			o.publish(s)
		case <-o.done:
			return
		}
	}
}

func (o *mirrorOutbox) publish(s domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := o.publisher.PublishSnapshot(ctx, s); err != nil {
		slog.Warn("Failed to mirror snapshot", "origin", s.Origin, "error", err)
	}
}

func (o *mirrorOutbox) close() {
	o.closeOnce.Do(func() { close(o.done) })
}
