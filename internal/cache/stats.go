package cache

import "time"

// Stats is the observability surface of the cache. All fields are derived
// from live state; none are independently persisted.
type Stats struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	Size        int           `json:"size"`
	MemoryUsage int64         `json:"memory_usage"`
	HitRate     float64       `json:"hit_rate"`
	AvgHitTime  time.Duration `json:"avg_hit_time"`
	AvgMissTime time.Duration `json:"avg_miss_time"`
}
