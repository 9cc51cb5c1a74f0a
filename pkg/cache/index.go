package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultIndexSize bounds the memory-resident fast-path index.
const DefaultIndexSize = 256

// pathIndex is the in-process fast path: remote reference to resolved local
// path. Bounded LRU, so a miss is never an error, just a fallthrough to the
// disk check. The original design leant on host-runtime memory-pressure
// eviction; an explicit LRU keeps the behavior deterministic and testable.
type pathIndex struct {
	entries *lru.Cache[string, string]
}

func newPathIndex(size int) (*pathIndex, error) {
	if size <= 0 {
		size = DefaultIndexSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &pathIndex{entries: entries}, nil
}

func (idx *pathIndex) get(remote string) (string, bool) {
	return idx.entries.Get(remote)
}

func (idx *pathIndex) put(remote, path string) {
	idx.entries.Add(remote, path)
}

// dropPath evicts every entry whose value is path. Used when an entry
// disappears from disk so the fast path cannot hand out a dead path.
func (idx *pathIndex) dropPath(path string) int {
	var dropped int
	for _, remote := range idx.entries.Keys() {
		if p, ok := idx.entries.Peek(remote); ok && p == path {
			idx.entries.Remove(remote)
			dropped++
		}
	}
	return dropped
}

func (idx *pathIndex) purge() {
	idx.entries.Purge()
}

func (idx *pathIndex) len() int {
	return idx.entries.Len()
}
