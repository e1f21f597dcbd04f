package util

import (
	"strings"
	"sync"

	"github.com/spaolacci/murmur3"
)

const DefaultLockStripes = 256

// KeyLock serialises work per key using a fixed set of mutexes. Distinct keys may share
// a stripe, which only costs throughput.
type KeyLock struct {
	stripes []sync.Mutex
}

func NewKeyLock(stripes int) *KeyLock {
	if stripes <= 0 {
		stripes = DefaultLockStripes
	}
	return &KeyLock{
		stripes: make([]sync.Mutex, stripes),
	}
}

func (k *KeyLock) Lock(parts ...string) func() {
	mu := &k.stripes[Partition(len(k.stripes), parts...)]
	mu.Lock()
	return mu.Unlock
}

// Partition maps the joined key onto [0, n).
func Partition(n int, parts ...string) int {
	key := strings.Join(parts, ":")
	return int(murmur3.Sum64([]byte(key)) % uint64(n))
}
