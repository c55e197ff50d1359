package configpipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultScanInterval = 5 * time.Second

type Options struct {
	// ScanInterval defaults to DefaultScanInterval. The scheduler has
	// one-second resolution.
	ScanInterval time.Duration
	Logger       *slog.Logger
}

type Pipeline struct {
	sources  []Source
	interval time.Duration
	logger   *slog.Logger

	// mutex serialises merges and guards sequence and published.
	mutex     sync.Mutex
	sequence  uint64
	published *Snapshot

	scheduler *cron.Cron
}

// New builds a pipeline over sources ordered from lowest to highest precedence.
func New(sources []Source, options Options) *Pipeline {
	if options.ScanInterval <= 0 {
		options.ScanInterval = DefaultScanInterval
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Pipeline{
		sources:  sources,
		interval: options.ScanInterval,
		logger:   options.Logger,
	}
}

// Load performs the initial synchronous merge. It fails with *LoadError when
// a mandatory layer cannot be read.
func (p *Pipeline) Load(ctx context.Context) (*Snapshot, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	merged, err := p.merge(ctx)
	if err != nil {
		return nil, err
	}

	p.sequence++
	p.published = NewSnapshot(p.sequence, merged)

	p.logger.Info("Configuration loaded",
		slog.Uint64("version", p.published.Version()),
		slog.Int("keys", len(merged)))

	return p.published, nil
}

// Current returns the last published snapshot, or nil before Load.
func (p *Pipeline) Current() *Snapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.published
}

// Scan re-reads every layer once. It returns an event only when the merged
// result differs from the last published snapshot. A scan whose mandatory
// layer fails keeps the last snapshot.
func (p *Pipeline) Scan(ctx context.Context) (ChangeEvent, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	merged, err := p.merge(ctx)
	if err != nil {
		p.logger.Warn("Configuration scan failed, keeping last snapshot", slog.Any("err", err))
		return ChangeEvent{}, false
	}

	p.sequence++
	next := NewSnapshot(p.sequence, merged)

	if p.published.Equal(next) {
		return ChangeEvent{}, false
	}

	var previous uint64
	if p.published != nil {
		previous = p.published.Version()
	}

	p.published = next
	p.logger.Info("Configuration changed",
		slog.Uint64("previous_version", previous),
		slog.Uint64("version", next.Version()))

	return ChangeEvent{PreviousVersion: previous, Configuration: next}, true
}

// StartWatching scans on the pipeline's interval and calls onChange once per
// detected change, in scan order. Only one scan runs at a time.
func (p *Pipeline) StartWatching(onChange func(ChangeEvent)) error {
	if onChange == nil {
		return errors.New("onChange callback required")
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.scheduler != nil {
		return errors.New("configuration pipeline already watching")
	}

	log := cronLogger{logger: p.logger}
	scheduler := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		if event, changed := p.Scan(context.Background()); changed {
			onChange(event)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule configuration scan: %w", err)
	}

	p.scheduler = scheduler
	scheduler.Start()

	p.logger.Info("Watching configuration", slog.Duration("interval", p.interval))
	return nil
}

// Stop halts watching and waits for a running scan to finish.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mutex.Lock()
	scheduler := p.scheduler
	p.scheduler = nil
	p.mutex.Unlock()

	if scheduler == nil {
		return nil
	}

	select {
	case <-scheduler.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// merge must be called with the mutex held.
func (p *Pipeline) merge(ctx context.Context) (map[string]string, error) {
	layers := make([]map[string]string, 0, len(p.sources))

	for _, source := range p.sources {
		values, err := source.Layer.Read(ctx)
		if err != nil {
			if !source.Optional {
				return nil, &LoadError{Layer: source.Layer.Name(), Err: err}
			}

			if !errors.Is(err, fs.ErrNotExist) {
				p.logger.Warn("Optional configuration layer unreadable, treating as empty",
					slog.String("layer", source.Layer.Name()),
					slog.Any("err", err))
			}
			values = nil
		}

		layers = append(layers, values)
	}

	return Merge(layers...), nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
