package geomap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fmpsc/spa/app/common"
)

// MapView owns the single standalone map of a session. Only one map is live
// at a time: Open releases the previous one before a new request starts.
type MapView struct {
	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	current *Map
}

// Open closes the current map and starts a new load. The returned context is
// cancelled by the next Open or by Close.
func (v *MapView) Open(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
	v.seq++
	v.cancel = cancel
	return ctx, v.seq
}

// Attach installs m as the live map if seq is still the latest load.
func (v *MapView) Attach(seq uint64, m *Map) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		return common.ErrStale
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.current = m
	return nil
}

// Fail ends the load identified by seq without a map. Stale loads are ignored.
func (v *MapView) Fail(seq uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq == v.seq && v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

// Close cancels any in-flight load and releases the current map.
func (v *MapView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
	v.seq++
}

func (v *MapView) closeLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.current != nil {
		slog.Debug("releasing map", "id", v.current.DOMID)
		v.current = nil
	}
}

func (v *MapView) Current() *Map {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}
