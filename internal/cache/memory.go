package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache 以绝对路径为键缓存小文件内容，并以文件 mtime 判定条目是否仍然有效。
// 淘汰策略（容量/TTL）交给 ristretto；其内部分片加锁，不同路径之间互不阻塞。
type Cache struct {
	store     *ristretto.Cache[string, Entry]
	ttl       time.Duration
	threshold int64
	capacity  int64

	hits    atomic.Uint64
	misses  atomic.Uint64
	stale   atomic.Uint64
	inserts atomic.Uint64
}

// New 构建内存缓存；零值字段会回落到默认值。
func New(opts Options) (*Cache, error) {
	opts = opts.withDefaults()
	if opts.Capacity < 0 || opts.TTL < 0 || opts.SizeThreshold < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidOptions, opts)
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, Entry]{
		NumCounters:        opts.Capacity * 10,
		MaxCost:            opts.Capacity,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	return &Cache{
		store:     store,
		ttl:       opts.TTL,
		threshold: opts.SizeThreshold,
		capacity:  opts.Capacity,
	}, nil
}

// Eligible 判断文件大小是否落在 [1, SizeThreshold]；空文件与超限文件都不进缓存。
func (c *Cache) Eligible(size int64) bool {
	return size > 0 && size <= c.threshold
}

// Threshold 返回可缓存文件的大小上限。
func (c *Cache) Threshold() int64 {
	return c.threshold
}

// Capacity 返回最多可驻留的条目数。
func (c *Cache) Capacity() int64 {
	return c.capacity
}

// TTL 返回条目寿命。
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup 仅在条目存在且 ModTime 与 modTime 相同时返回内容；过期条目视同未命中，
// 由调用方重新读取并 Insert 覆盖。
func (c *Cache) Lookup(path string, modTime time.Time) ([]byte, bool) {
	entry, ok := c.store.Get(path)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !entry.ModTime.Equal(modTime) {
		c.stale.Add(1)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Data, true
}

// Insert 写入（或覆盖）条目。ristretto 的写入是异步的，这里等待缓冲区落地，
// 保证同一请求链路上的后续 Lookup 可见；准入策略拒绝时返回 false，属于正常情况。
func (c *Cache) Insert(path string, data []byte, modTime time.Time) bool {
	accepted := c.store.SetWithTTL(path, Entry{Data: data, ModTime: modTime}, 1, c.ttl)
	c.store.Wait()
	if accepted {
		c.inserts.Add(1)
	}
	return accepted
}

// Remove 删除指定路径的条目。
func (c *Cache) Remove(path string) {
	c.store.Del(path)
}

// Stats 返回累计的命中统计。
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stale:   c.stale.Load(),
		Inserts: c.inserts.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// Close 停止 ristretto 的后台协程。
func (c *Cache) Close() {
	c.store.Close()
}
