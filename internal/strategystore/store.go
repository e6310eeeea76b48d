// Package strategystore fetches strategy documents by id. The engine treats
// the returned bytes as opaque graph input; where a document lives (a
// directory on disk, an HTTP service) stays behind the Store interface.
package strategystore

import "context"

// Store resolves a strategy id to its raw JSON document.
type Store interface {
	// Fetch returns the document bytes for the given strategy id.
	Fetch(ctx context.Context, strategyID string) ([]byte, error)
}
