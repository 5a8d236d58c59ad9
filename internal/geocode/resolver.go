// README: Geocoding port plus a memoizing decorator. Failures are non-fatal
// to callers: the tracking layer keeps the previous ETA.
package geocode

import (
	"context"
	"errors"
	"sync"

	"waypoint/internal/types"
)

var ErrNotFound = errors.New("address not found")

type Resolver interface {
	Resolve(ctx context.Context, address string) (types.Point, error)
}

// Cached memoizes successful resolutions. Tracking resolves at most one
// address per active order, so an in-process map is enough; negative results
// are not cached so transient upstream failures retry naturally.
type Cached struct {
	next Resolver

	mu        sync.RWMutex
	byAddress map[string]types.Point
}

func NewCached(next Resolver) *Cached {
	return &Cached{next: next, byAddress: make(map[string]types.Point)}
}

func (c *Cached) Resolve(ctx context.Context, address string) (types.Point, error) {
	c.mu.RLock()
	p, ok := c.byAddress[address]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := c.next.Resolve(ctx, address)
	if err != nil {
		return types.Point{}, err
	}
	c.mu.Lock()
	c.byAddress[address] = p
	c.mu.Unlock()
	return p, nil
}
