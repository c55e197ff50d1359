package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/pokeapi-edge/internal/registry"
)

// Result is what a probe reports. Data is free-form detail shown in the
// health response.
type Result struct {
	OK   bool
	Data map[string]any
}

// Probe checks one dependency. It should return once ctx is done.
type Probe func(ctx context.Context) Result

func Up() Result {
	return Result{OK: true}
}

func Down(data map[string]any) Result {
	return Result{OK: false, Data: data}
}

// FromError adapts an error-returning check into a Probe.
func FromError(check func(ctx context.Context) error) Probe {
	return func(ctx context.Context) Result {
		if err := check(ctx); err != nil {
			return Down(map[string]any{"error": err.Error()})
		}
		return Up()
	}
}

type registration struct {
	timeout time.Duration
	probe   Probe
}

// Registry holds named probes. Names containing "/" nest checks into groups.
type Registry struct {
	mutex  sync.Mutex
	probes *registry.Registry[registration]
	group  singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{
		probes: registry.New[registration]("health probe"),
	}
}

// Register adds a probe bounded by timeout. Registering a name twice returns
// *registry.DuplicateNameError. A name cannot be both a check and a group:
// "a" and "a/b" do not coexist.
func (r *Registry) Register(name string, timeout time.Duration, probe Probe) error {
	if probe == nil {
		return errors.New("health probe required")
	}
	if timeout <= 0 {
		return fmt.Errorf("health probe %q: timeout must be positive", name)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.probes.Names() {
		if strings.HasPrefix(existing, name+"/") || strings.HasPrefix(name, existing+"/") {
			return fmt.Errorf("health probe %q: conflicts with group of %q", name, existing)
		}
	}

	return r.probes.Register(name, registration{timeout: timeout, probe: probe})
}

func (r *Registry) Names() []string {
	return r.probes.Names()
}

// RunAll runs every probe concurrently and aggregates the outcomes. Probe
// failures, timeouts and panics are reported in the returned Status; RunAll
// itself never fails.
func (r *Registry) RunAll(ctx context.Context) Status {
	probes := r.probes.Snapshot()

	var (
		mutex   sync.Mutex
		wg      conc.WaitGroup
		results = make(map[string]Status, len(probes))
	)

	for name, reg := range probes {
		wg.Go(func() {
			status := run(ctx, reg)

			mutex.Lock()
			results[name] = status
			mutex.Unlock()
		})
	}
	wg.Wait()

	return buildTree("", results)
}

// Check is RunAll shared between concurrent callers. The shared run does not
// depend on any single caller staying connected; probe timeouts bound it. A
// caller whose ctx ends first gets a DOWN status marked cancelled.
func (r *Registry) Check(ctx context.Context) Status {
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan("run-all", func() (any, error) {
		return r.RunAll(shared), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		return Status{Status: OutcomeDown, Data: map[string]any{"cancelled": true}}
	}
}

// Liveness reports the process as up regardless of dependencies.
func Liveness() Status {
	return Status{Status: OutcomeUp}
}

func run(ctx context.Context, reg registration) Status {
	ctx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	done := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Down(map[string]any{"panic": fmt.Sprint(r)})
			}
		}()
		done <- reg.probe(ctx)
	}()

	select {
	case result := <-done:
		return toStatus(result)
	case <-ctx.Done():
		data := map[string]any{"timeout": true}
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			data = map[string]any{"cancelled": true}
		}
		return Status{Status: OutcomeDown, Data: data}
	}
}

func toStatus(result Result) Status {
	status := Status{Status: OutcomeDown, Data: result.Data}
	if result.OK {
		status.Status = OutcomeUp
	}
	return status
}
