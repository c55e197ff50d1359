package instance

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/pokeapi-edge/internal/broadcast"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
)

// ConfigReader gives handlers the snapshot in effect for the current request.
type ConfigReader interface {
	Config() *configpipeline.Snapshot
}

// HandlerFactory builds the routes served by one instance.
type HandlerFactory func(cfg ConfigReader) http.Handler

const ewmaAlpha = 0.2

// Instance is one request-handling unit with its own configuration.
type Instance struct {
	id      string
	index   int
	config  atomic.Pointer[configpipeline.Snapshot]
	handler http.Handler
	live    atomic.Bool
	logger  *slog.Logger

	mutex             sync.Mutex
	activeConnections int
	ewmaResponseTime  time.Duration
	hasEWMA           bool
}

// New creates an instance holding initial. The instance is not live until
// the coordinator starts it.
func New(index int, initial *configpipeline.Snapshot, factory HandlerFactory, logger *slog.Logger) *Instance {
	inst := &Instance{
		id:    uuid.NewString(),
		index: index,
	}
	inst.config.Store(initial)
	inst.logger = logger.With(slog.String("instance", inst.id))
	inst.handler = factory(inst)
	return inst
}

func (i *Instance) ID() string {
	return i.id
}

func (i *Instance) Index() int {
	return i.index
}

// Config returns the snapshot in effect.
func (i *Instance) Config() *configpipeline.Snapshot {
	return i.config.Load()
}

// Apply installs snap if it is strictly newer than the current snapshot.
// It reports whether the snapshot was installed.
func (i *Instance) Apply(snap *configpipeline.Snapshot) bool {
	if snap == nil {
		return false
	}

	for {
		current := i.config.Load()
		if current != nil && current.Version() >= snap.Version() {
			return false
		}
		if i.config.CompareAndSwap(current, snap) {
			return true
		}
	}
}

// Run applies events from sub until ctx is done or the subscription ends.
func (i *Instance) Run(ctx context.Context, sub *broadcast.Subscription[configpipeline.ChangeEvent]) {
	i.live.Store(true)
	defer i.live.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.C():
			if i.Apply(event.Configuration) {
				i.logger.Info("Configuration applied",
					slog.Uint64("version", event.Configuration.Version()))
			}
		}
	}
}

func (i *Instance) IsLive() bool {
	return i.live.Load()
}

func (i *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.handler.ServeHTTP(w, r)
}

func (i *Instance) IncrementConn() {
	i.mutex.Lock()
	i.activeConnections++
	i.mutex.Unlock()
}

func (i *Instance) DecrementConn() {
	i.mutex.Lock()
	if i.activeConnections > 0 {
		i.activeConnections--
	}
	i.mutex.Unlock()
}

func (i *Instance) ActiveConnections() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.activeConnections
}

// RecordResponse folds duration into the moving average response time.
func (i *Instance) RecordResponse(duration time.Duration) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if !i.hasEWMA {
		i.ewmaResponseTime = duration
		i.hasEWMA = true
		return
	}
	// ewma = (1 - α) * ewma + α * latest
	i.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(i.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns 0 until a response has been recorded.
func (i *Instance) EWMATime() time.Duration {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if !i.hasEWMA {
		return 0
	}
	return i.ewmaResponseTime
}
