// README: Sharded per-order mutex. Mutations for one order serialize,
// different orders proceed fully in parallel.
package tracking

import (
	"hash/fnv"
	"sync"

	"waypoint/internal/types"
)

const lockShards = 64

type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *keyedMutex) lock(id types.ID) func() {
	m := &k.shards[shardFor(id)]
	m.Lock()
	return m.Unlock
}

func shardFor(id types.ID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % lockShards
}
