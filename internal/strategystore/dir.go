package strategystore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// DirStore serves strategy documents from a directory laid out as
// {root}/{id}.json.
type DirStore struct {
	root string
}

var _ Store = (*DirStore)(nil)

// NewDirStore creates a store rooted at the given directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{
		root: root,
	}
}

// Fetch implements Store.
func (d *DirStore) Fetch(_ context.Context, strategyID string) ([]byte, error) {
	if strategyID == "" || strategyID != filepath.Base(strategyID) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "strategy id %q must be a bare name", strategyID)
	}

	path := filepath.Join(d.root, strategyID+".json")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %q not found", strategyID)
		}

		return nil, errors.Wrapf(errors.ErrCodeStrategyFetchFailed, err, "failed to read strategy %q", strategyID)
	}

	return raw, nil
}
