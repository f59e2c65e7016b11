package ingest

import (
	"sync"
	"time"

	"sns-ingest/internal/domain"
)

// recentLimit — размер кольца недавних сохранений.
const recentLimit = 20

// Snapshot — снимок статистики сборщика.
type Snapshot struct {
	LastCollect    time.Time         `json:"last_collect_time"`
	Running        bool              `json:"is_running"`
	TotalCollected int               `json:"total_collected"`
	TotalWritten   int               `json:"total_written"`
	TotalFiltered  int               `json:"total_filtered"`
	TotalDuplicate int               `json:"total_duplicate"`
	CacheSize      int               `json:"cache_size"`
	FailedWrites   int               `json:"failed_writes"`
	LastResult     string            `json:"last_result,omitempty"`
	Recent         []domain.Activity `json:"recent_activity"`
}

// Stats копит счётчики сборщика за время жизни процесса.
type Stats struct {
	mu      sync.Mutex
	last    time.Time
	running bool
	totals  [4]int
	result  string
	recent  []domain.Activity
}

// NewStats создаёт пустую статистику.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Stats) record(at time.Time, res domain.CollectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = at
	s.totals[0] += res.Fetched
	s.totals[1] += res.Written
	s.totals[2] += res.Filtered
	s.totals[3] += res.Duplicate
	s.result = res.Summary()
}

func (s *Stats) addActivity(a domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, a)
	if len(s.recent) > recentLimit {
		s.recent = append([]domain.Activity(nil), s.recent[len(s.recent)-recentLimit:]...)
	}
}

// Snapshot возвращает копию текущих значений.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LastCollect:    s.last,
		Running:        s.running,
		TotalCollected: s.totals[0],
		TotalWritten:   s.totals[1],
		TotalFiltered:  s.totals[2],
		TotalDuplicate: s.totals[3],
		LastResult:     s.result,
		Recent:         append([]domain.Activity(nil), s.recent...),
	}
}
