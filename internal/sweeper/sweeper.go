package sweeper

import (
	"context"
)

// Sweeper is a background job that repairs projection data the indexer could not complete inline,
// such as token metadata that was unreachable at mint time.
type Sweeper interface {
	// Start blocks, running sweep cycles until ctx is done or Stop is called
	Start(ctx context.Context) error

	// Stop signals the loop and waits for the current batch, bounded by ctx
	Stop(ctx context.Context) error

	Name() string
}
