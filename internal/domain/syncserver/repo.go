package syncserver

import "context"

// Store owns the server document. Update applies fn to a working copy and
// commits it only when fn returns nil; concurrent updates are serialised.
type Store interface {
	Snapshot(ctx context.Context) (*Document, error)
	Update(ctx context.Context, fn func(doc *Document) error) error
}
