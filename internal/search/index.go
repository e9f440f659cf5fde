// Package search is the indexing port consumed by the search queue worker.
// The engine only upserts and deletes documents by id; the query side is
// owned by the external search subsystem.
package search

import (
	"context"
	"encoding/json"
)

// Index applies document operations to one or more entity indexes. Both
// operations are idempotent: re-applying an upsert for the same id
// overwrites, and deleting a missing document is a no-op.
type Index interface {
	Upsert(ctx context.Context, entity, id string, document json.RawMessage) error
	Delete(ctx context.Context, entity, id string) error
}
