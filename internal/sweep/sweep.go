// Package sweep reclaims stored objects that no metadata row refers to.
//
// Orphans appear when an upload's compensating delete fails, or when an
// object delete fails after its row was already removed. The sweeper lists
// the key prefix, asks the metadata store which keys it still knows, and
// deletes the rest once they are older than a grace period. The grace period
// keeps it away from uploads whose row has not been inserted yet.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/eyueldk/edkstack-files/internal/storage"
)

const (
	defaultGracePeriod = 24 * time.Hour
	defaultBatchSize   = 500
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_sweep_runs_total",
		Help: "Number of orphan sweeps started.",
	})

	sweepObjectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "files_sweep_objects_total",
		Help: "Objects seen by the orphan sweeper, by outcome.",
	}, []string{"result"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "files_sweep_duration_seconds",
		Help:    "Duration of one orphan sweep.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// KeyIndex reports which object keys still have a metadata row.
// file.MetadataStore satisfies it.
type KeyIndex interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
}

// Options tune a Sweeper.
type Options struct {
	// Prefix limits the sweep to keys under it, e.g. "files".
	Prefix      string
	GracePeriod time.Duration
	BatchSize   int
	// DryRun reports orphans without deleting them.
	DryRun bool
}

// Result summarizes one sweep.
type Result struct {
	Scanned  int      `json:"scanned"`
	Recent   int      `json:"recent"`
	Orphaned int      `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Failed   int      `json:"failed"`
	Orphans  []string `json:"orphans,omitempty"`
}

// Sweeper deletes orphaned objects.
type Sweeper struct {
	objects storage.Storage
	index   KeyIndex
	opts    Options
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// ErrAlreadyRunning is returned by RunOnce while another sweep is in progress.
var ErrAlreadyRunning = errors.New("sweep already running")

// New creates a Sweeper.
func New(objects storage.Storage, index KeyIndex, opts Options, log *zap.Logger) *Sweeper {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &Sweeper{
		objects: objects,
		index:   index,
		opts:    opts,
		log:     log.With(zap.String("component", "sweep")),
		now:     time.Now,
	}
}

// Start runs a sweep every interval until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
					s.log.Error("sweep failed", zap.Error(err))
				}
			}
		}
	}()

	s.log.Info("orphan sweeper started",
		zap.Duration("interval", interval),
		zap.Duration("grace_period", s.opts.GracePeriod),
	)
}

// Stop halts the background loop started by Start.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// RunOnce performs one sweep. Failures to delete individual objects are
// counted in the Result and joined into the returned error; the sweep keeps
// going past them.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := s.now()
	sweepRunsTotal.Inc()

	var (
		res     Result
		errs    []error
		batch   = make([]string, 0, s.opts.BatchSize)
		cutoff  = started.Add(-s.opts.GracePeriod)
		listing = s.opts.Prefix
	)
	if listing != "" {
		listing += "/"
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		known, err := s.index.ExistingKeys(ctx, batch)
		if err != nil {
			return fmt.Errorf("check keys: %w", err)
		}
		for _, key := range batch {
			if known[key] {
				continue
			}
			res.Orphaned++
			res.Orphans = append(res.Orphans, key)
			if s.opts.DryRun {
				sweepObjectsTotal.WithLabelValues("orphaned").Inc()
				continue
			}
			if err := s.objects.Delete(ctx, key); err != nil {
				res.Failed++
				sweepObjectsTotal.WithLabelValues("failed").Inc()
				s.log.Warn("orphan delete failed", zap.String("key", key), zap.Error(err))
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
				continue
			}
			res.Deleted++
			sweepObjectsTotal.WithLabelValues("deleted").Inc()
		}
		batch = batch[:0]
		return nil
	}

	err := s.objects.List(ctx, listing, func(obj storage.ObjectSummary) error {
		res.Scanned++
		if obj.LastModified.After(cutoff) {
			res.Recent++
			return nil
		}
		batch = append(batch, obj.Key)
		if len(batch) >= s.opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	sweepDurationSeconds.Observe(s.now().Sub(started).Seconds())
	if err != nil {
		return res, fmt.Errorf("sweep %q: %w", listing, err)
	}

	s.log.Info("sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("recent", res.Recent),
		zap.Int("orphaned", res.Orphaned),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Bool("dry_run", s.opts.DryRun),
	)
	return res, errors.Join(errs...)
}
