package loader

import (
	"time"
)

// healthyRate is the minimum load success rate considered healthy.
const healthyRate = 0.8

type stats struct {
	loads         uint64
	failures      uint64
	totalLoadTime time.Duration
	lastLoad      time.Time
}

// Stats is a snapshot of loader activity and health.
type Stats struct {
	Loads           uint64               `json:"loads"`
	Failures        uint64               `json:"failures"`
	SuccessRate     float64              `json:"success_rate"`
	AverageLoadTime time.Duration        `json:"average_load_time"`
	LastLoad        time.Time            `json:"last_load"`
	FileMtimes      map[string]time.Time `json:"file_mtimes"`
}

// IsHealthy reports whether loads are succeeding often enough.
func (s Stats) IsHealthy() bool {
	return s.Loads > 0 && s.SuccessRate > healthyRate
}

func (l *Loader) recordLoad(elapsed time.Duration, success bool) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	l.stats.loads++
	if !success {
		l.stats.failures++
	}
	l.stats.totalLoadTime += elapsed
	l.stats.lastLoad = time.Now().UTC()
}

// Stats returns current loader statistics.
func (l *Loader) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	mtimes := make(map[string]time.Time, len(l.mtimes))
	for file, mtime := range l.mtimes {
		mtimes[file] = mtime
	}

	out := Stats{
		Loads:      l.stats.loads,
		Failures:   l.stats.failures,
		LastLoad:   l.stats.lastLoad,
		FileMtimes: mtimes,
	}
	if l.stats.loads > 0 {
		out.SuccessRate = float64(l.stats.loads-l.stats.failures) / float64(l.stats.loads)
		out.AverageLoadTime = l.stats.totalLoadTime / time.Duration(l.stats.loads)
	}
	return out
}
