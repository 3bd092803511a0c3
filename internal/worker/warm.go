package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
)

// WarmJob refreshes the blended cache for the configured target points.
// Each point runs a full orchestrated query with the cache read bypassed,
// so the blend is recomputed from live upstreams and the cache rewritten.
type WarmJob struct {
	config       WarmConfig
	logger       zerolog.Logger
	orchestrator *orchestrator.Orchestrator

	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	SuccessfulPoints int64
	FailedPoints     int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config       WarmConfig
	Logger       zerolog.Logger
	Orchestrator *orchestrator.Orchestrator
}

// NewWarmJob creates a new cache warm job processor.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultWarmConfig()
	}
	if config.Concurrency == 0 {
		config.Concurrency = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &WarmJob{
		config:       config,
		logger:       cfg.Logger,
		orchestrator: cfg.Orchestrator,
		metrics:      &WarmMetrics{},
	}
}

// WarmResult contains the result of one warm run.
type WarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []WarmError
}

// WarmError records a point whose blend came back without data.
type WarmError struct {
	Point Point
	Error string
}

// Run executes the warm job for all configured targets.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	startTime := time.Now()
	result := &WarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm job")

	points := j.config.AllPoints()

	pointsChan := make(chan Point, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.success {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, pr.err)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache warm job completed")

	return result
}

type pointResult struct {
	success bool
	err     WarmError
}

func (j *WarmJob) warmWorker(ctx context.Context, points <-chan Point, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.warmPoint(ctx, point)
		}
	}
}

func (j *WarmJob) warmPoint(ctx context.Context, point Point) pointResult {
	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	// UseCache false forces a live blend; the engine rewrites the cache
	// entry on success.
	r := j.orchestrator.Query(pointCtx, point.Lat, point.Lon, orchestrator.QueryOptions{
		IncludeForecast: j.config.IncludeForecast,
		UseCache:        false,
	})

	if r.Current.Unavailable() {
		return pointResult{err: WarmError{Point: point, Error: r.Current.Error}}
	}
	return pointResult{success: true}
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulPoints += int64(result.Successful)
	j.metrics.FailedPoints += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulPoints: j.metrics.SuccessfulPoints,
		FailedPoints:     j.metrics.FailedPoints,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// FlushJob persists in-memory health snapshots to the repository.
type FlushJob struct {
	tracker *adapter.Tracker
	repo    adapter.HealthRepository
	logger  zerolog.Logger
}

// NewFlushJob creates a health snapshot flush job.
func NewFlushJob(tracker *adapter.Tracker, repo adapter.HealthRepository, logger zerolog.Logger) *FlushJob {
	return &FlushJob{tracker: tracker, repo: repo, logger: logger}
}

// Run flushes every tracked source's health record.
func (j *FlushJob) Run(ctx context.Context) error {
	j.tracker.Flush(ctx, j.repo)
	j.logger.Debug().Msg("health snapshots flushed")
	return nil
}
