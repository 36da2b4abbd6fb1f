package cache

import (
	"errors"
	"time"
)

// 默认值与文件服务器的经验值保持一致：最多 128 个条目、2 小时 TTL、4MiB 以内的小文件。
const (
	DefaultCapacity      int64 = 128
	DefaultTTL                 = 2 * time.Hour
	DefaultSizeThreshold int64 = 4 * 1024 * 1024
)

// Entry 是内存中的一份文件快照。Data 写入后不可修改，ModTime 用于命中校验。
type Entry struct {
	Data    []byte
	ModTime time.Time
}

// Options 控制缓存容量（条目数而非字节数）、条目寿命与可缓存的文件大小上限。
// 最坏内存占用为 Capacity × SizeThreshold。
type Options struct {
	Capacity      int64
	TTL           time.Duration
	SizeThreshold int64
}

// Stats 汇总查询结果，供诊断接口输出。
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Stale   uint64 `json:"stale"`
	Inserts uint64 `json:"inserts"`
	// HitRatio 为 Hits / (Hits + Misses)，尚无查询时为 0。
	HitRatio float64 `json:"hit_ratio"`
}

// ErrInvalidOptions 表示缓存参数不合法，属于启动期错误。
var ErrInvalidOptions = errors.New("invalid cache options")

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	if o.SizeThreshold == 0 {
		o.SizeThreshold = DefaultSizeThreshold
	}
	return o
}
