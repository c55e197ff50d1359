package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/pokeapi-edge/config"
	"github.com/angeloszaimis/pokeapi-edge/internal/broadcast"
	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
	"github.com/angeloszaimis/pokeapi-edge/internal/dispatch"
	"github.com/angeloszaimis/pokeapi-edge/internal/handler"
	"github.com/angeloszaimis/pokeapi-edge/internal/healthcheck"
	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
	"github.com/angeloszaimis/pokeapi-edge/internal/strategy"
	"github.com/angeloszaimis/pokeapi-edge/internal/upstream"
)

type app struct {
	cfg         *config.Config
	log         *slog.Logger
	pipeline    *configpipeline.Pipeline
	breakers    *circuitbreaker.Registry
	health      *healthcheck.Registry
	coordinator *instance.Coordinator
	dispatcher  *dispatch.Dispatcher
	collector   *metrics.Collector
}

// newApp loads the service configuration and wires every component. It
// fails with *configpipeline.LoadError when a mandatory layer is unreadable.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	pipeline := configpipeline.New(configSources(cfg), configpipeline.Options{
		ScanInterval: cfg.Sources.ScanInterval,
		Logger:       log,
	})

	initial, err := pipeline.Load(ctx)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	breakers := circuitbreaker.NewRegistry()
	breaker, err := breakers.Register(cfg.Breaker.Name, circuitbreaker.Options{
		MaxFailures:       cfg.Breaker.MaxFailures,
		CallTimeout:       cfg.Breaker.Timeout,
		ResetTimeout:      cfg.Breaker.ResetTimeout,
		FallbackOnFailure: cfg.Breaker.FallbackOnFailure,
	})
	if err != nil {
		return nil, err
	}
	circuitbreaker.LogTransitions(ctx, breaker, log)
	collector.TrackBreaker(ctx, breaker)

	health := healthcheck.NewRegistry()
	if err := health.Register(cfg.HealthCheck.Name, cfg.HealthCheck.Timeout, healthcheck.BreakerProbe(breaker)); err != nil {
		return nil, err
	}

	routes := handler.Routes(handler.Deps{
		Breaker: breaker,
		Fetcher: upstream.NewClient(&http.Client{Timeout: cfg.Upstream.Timeout}, log),
		Logger:  log,
		Metrics: collector,
	})

	bus := broadcast.New[configpipeline.ChangeEvent](broadcast.TopicConfigurationChanged)
	coordinator, err := instance.NewCoordinator(cfg.Dispatch.Instances, initial, bus, routes, log)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.New(cfg.Dispatch.Strategy)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		log:         log,
		pipeline:    pipeline,
		breakers:    breakers,
		health:      health,
		coordinator: coordinator,
		dispatcher:  dispatch.New(log, strat, coordinator, collector),
		collector:   collector,
	}, nil
}

// configSources orders the layers from lowest to highest precedence:
// bundled defaults, environment, then the optional external file.
func configSources(cfg *config.Config) []configpipeline.Source {
	sources := []configpipeline.Source{
		{Layer: configpipeline.PropertiesFile(cfg.Sources.Defaults)},
		{Layer: configpipeline.Env(configpipeline.Keys...)},
	}

	if cfg.Sources.External != "" {
		sources = append(sources, configpipeline.Source{
			Layer:    configpipeline.PropertiesFile(cfg.Sources.External),
			Optional: true,
		})
	}

	return sources
}

// start runs the instances and the background watchers.
func (a *app) start(ctx context.Context) error {
	if err := a.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start instances: %w", err)
	}

	err := a.pipeline.StartWatching(func(event configpipeline.ChangeEvent) {
		if err := a.coordinator.Publish(ctx, event); err != nil {
			a.log.Error("Failed to publish configuration change",
				slog.Uint64("version", event.Configuration.Version()),
				slog.Any("err", err))
			return
		}

		a.collector.Emit(metrics.MetricEvent{
			Type:    metrics.EventConfigReloaded,
			Version: event.Configuration.Version(),
		})
	})
	if err != nil {
		return fmt.Errorf("watch configuration: %w", err)
	}

	go healthcheck.Watch(ctx, a.health, a.cfg.HealthCheck.Interval, a.log, func(name string, healthy bool) {
		a.collector.Emit(metrics.MetricEvent{
			Type:    metrics.EventHealthChanged,
			Name:    name,
			Healthy: healthy,
		})
	})

	go a.collector.Report(ctx, a.cfg.Metrics.ReportInterval, a.cfg.Dispatch.Strategy)

	return nil
}

func (a *app) stop(ctx context.Context) error {
	err := a.pipeline.Stop(ctx)
	a.coordinator.Stop()
	return err
}
