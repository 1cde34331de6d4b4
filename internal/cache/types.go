package cache

import (
	"time"

	"github.com/raaihank/moji-sentinel/internal/mojibake"
)

// cachedEntry is the JSON envelope stored in Redis for each scanned text.
type cachedEntry struct {
	Result   *mojibake.DetectionResult `json:"result"`
	CachedAt time.Time                 `json:"cached_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}
