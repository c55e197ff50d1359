package instance

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/angeloszaimis/pokeapi-edge/internal/broadcast"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
)

// Bus is the broadcaster that carries configuration changes.
type Bus = broadcast.Broadcaster[configpipeline.ChangeEvent]

const subscriptionBuffer = 1

// Coordinator starts instances and keeps them in step with published
// configuration.
type Coordinator struct {
	instances []*Instance
	bus       *Bus
	logger    *slog.Logger

	mutex   sync.Mutex
	latest  *configpipeline.Snapshot
	cancel  context.CancelFunc
	running conc.WaitGroup
	started bool
}

// NewCoordinator creates n instances from initial. A non-positive n means
// one instance per available CPU.
func NewCoordinator(n int, initial *configpipeline.Snapshot, bus *Bus, factory HandlerFactory, logger *slog.Logger) (*Coordinator, error) {
	if initial == nil {
		return nil, errors.New("initial configuration required")
	}
	if bus == nil {
		return nil, errors.New("configuration bus required")
	}
	if factory == nil {
		return nil, errors.New("handler factory required")
	}
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	c := &Coordinator{
		instances: make([]*Instance, 0, n),
		bus:       bus,
		logger:    logger,
		latest:    initial,
	}
	for i := range n {
		c.instances = append(c.instances, New(i, initial, factory, logger))
	}
	return c, nil
}

// Start subscribes every instance and begins applying events. Instances
// catch up to the latest snapshot published before they subscribed.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.started {
		return errors.New("coordinator already started")
	}

	subs := make([]*broadcast.Subscription[configpipeline.ChangeEvent], 0, len(c.instances))
	for _, inst := range c.instances {
		sub, err := c.bus.Subscribe(inst.ID(), subscriptionBuffer)
		if err != nil {
			for _, s := range subs {
				c.bus.Unsubscribe(s.ID())
			}
			return err
		}
		subs = append(subs, sub)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true

	for idx, inst := range c.instances {
		inst.Apply(c.latest)
		inst.live.Store(true)

		sub := subs[idx]
		c.running.Go(func() {
			inst.Run(runCtx, sub)
		})
	}

	c.logger.Info("Instances started",
		slog.Int("count", len(c.instances)),
		slog.String("topic", c.bus.Topic()))
	return nil
}

// ErrNoConfiguration is returned by Publish for an event without a snapshot.
var ErrNoConfiguration = errors.New("change event carries no configuration")

// Publish records event as the latest configuration and broadcasts it.
func (c *Coordinator) Publish(ctx context.Context, event configpipeline.ChangeEvent) error {
	if event.Configuration == nil {
		return ErrNoConfiguration
	}

	c.mutex.Lock()
	if c.latest == nil || event.Configuration.Version() > c.latest.Version() {
		c.latest = event.Configuration
	}
	c.mutex.Unlock()

	return c.bus.Publish(ctx, event)
}

// Latest returns the newest snapshot the coordinator knows about.
func (c *Coordinator) Latest() *configpipeline.Snapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.latest
}

// Instances returns the instances in index order.
func (c *Coordinator) Instances() []*Instance {
	out := make([]*Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// Stop ends every instance and waits for them to exit.
func (c *Coordinator) Stop() {
	c.mutex.Lock()
	cancel := c.cancel
	started := c.started
	c.started = false
	c.cancel = nil
	c.mutex.Unlock()

	if !started {
		return
	}

	for _, inst := range c.instances {
		c.bus.Unsubscribe(inst.ID())
	}
	cancel()
	c.running.Wait()

	c.logger.Info("Instances stopped", slog.Int("count", len(c.instances)))
}
