package gdbx

import (
	"go.uber.org/zap"
)

// Default tuning constants, mirrored from the teacher's buffer manager
// defaults (8 KiB pages, PostgreSQL-style buffer pool sizing).
const (
	DefaultPageSize       = 8 * 1024
	DefaultBufferPoolSize = 1000
	DefaultSpaceWatermark = 0.25
)

// Options configures a Database handle. Unlike the teacher's process-wide
// settings.Arguments singleton, this is scoped per Open call since the
// database is a library, not a long-running server.
type Options struct {
	// PageSize is the fixed page size in bytes. Defaults to 8 KiB. Only
	// meaningful on a freshly created file; reopening an existing file
	// always uses the page size recorded in its super-page.
	PageSize int

	// BufferPoolSize is the number of page-sized buffers kept resident.
	BufferPoolSize int

	// SyncOnCommit is passed to the pager but does not change commit
	// behaviour: every commit fsyncs the WAL, the data file and the
	// super-page (§4.6 steps 3 and 5) whether it is true or false.
	SyncOnCommit bool

	// SyncIntervalWrites, when > 0, additionally syncs the data file
	// after every N buffer pool writes, regardless of SyncOnCommit.
	SyncIntervalWrites int

	// SpaceWatermark is filled in by normalize but not consulted by the
	// heap: a heap page is compacted only when an insert or replace does
	// not fit in its free space, whatever fraction of it is free.
	SpaceWatermark float64

	// ReadOnly makes Begin a no-op that never acquires the writer lock,
	// so every write operation fails fast with ErrNotOpen.
	ReadOnly bool

	// Logger receives structured diagnostics from every component. A
	// no-op logger is used when nil, matching the teacher's practice of
	// threading *zap.SugaredLogger through every constructor.
	Logger *zap.SugaredLogger
}

// DefaultOptions returns the baseline configuration used when the caller
// supplies a zero-value Options to Open.
func DefaultOptions() Options {
	return Options{
		PageSize:           DefaultPageSize,
		BufferPoolSize:     DefaultBufferPoolSize,
		SyncOnCommit:       true,
		SyncIntervalWrites: 0,
		SpaceWatermark:     DefaultSpaceWatermark,
	}
}

// normalize fills in zero-valued fields with defaults the way
// settings.UpdateSettings merges a partial Arguments into the running
// configuration.
func (o Options) normalize() Options {
	defaults := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = defaults.PageSize
	}
	if o.BufferPoolSize <= 0 {
		o.BufferPoolSize = defaults.BufferPoolSize
	}
	if o.SpaceWatermark <= 0 {
		o.SpaceWatermark = defaults.SpaceWatermark
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}
