package domain

import "context"

// SnapshotPublisher forwards locally accepted snapshots to other relay instances.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot Snapshot) error
}
