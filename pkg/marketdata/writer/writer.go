package writer

import (
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// BarWriter defines the interface for persisting downloaded bars.
type BarWriter interface {
	// Initialize sets up the writer, creating tables or files as needed.
	Initialize() error
	// Write persists a single bar.
	Write(bar types.Bar) error
	// Finalize completes the writing process (e.g. commits the transaction)
	// and returns the path the bars were written to.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer. A writer that was
	// initialized but never finalized discards its pending bars.
	Close() error
	// OutputPath returns the configured destination path.
	OutputPath() string
}
