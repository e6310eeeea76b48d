package strategystore

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPStore fetches strategy documents with GET {base}/{id}.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates a store against the given base URL. A zero timeout
// falls back to ten seconds; per-request deadlines come from the caller's
// context on top of that.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch implements Store.
func (h *HTTPStore) Fetch(ctx context.Context, strategyID string) ([]byte, error) {
	if strategyID == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "strategy id must not be empty")
	}

	reqURL := h.baseURL + "/" + url.PathEscape(strategyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyFetchFailed, err, "failed to build request for strategy %q", strategyID)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyFetchFailed, err, "failed to fetch strategy %q", strategyID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %q not found", strategyID)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf(errors.ErrCodeStrategyFetchFailed, "strategy fetch returned http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyFetchFailed, err, "failed to read strategy %q body", strategyID)
	}

	return raw, nil
}
