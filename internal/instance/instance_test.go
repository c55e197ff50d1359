package instance_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/broadcast"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

func snapshot(version uint64, ping string) *configpipeline.Snapshot {
	return configpipeline.NewSnapshot(version, map[string]string{configpipeline.KeyPingResponse: ping})
}

func pingFactory(cfg instance.ConfigReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cfg.Config().String(configpipeline.KeyPingResponse, "")))
	})
}

var _ = Describe("Instance", func() {
	var (
		inst   *instance.Instance
		logger *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.DiscardHandler)
		inst = instance.New(0, snapshot(1, "pong"), pingFactory, logger)
	})

	It("should start with the initial configuration and a unique id", func() {
		other := instance.New(1, snapshot(1, "pong"), pingFactory, logger)

		Expect(inst.Config().Version()).To(Equal(uint64(1)))
		Expect(inst.ID()).NotTo(BeEmpty())
		Expect(inst.ID()).NotTo(Equal(other.ID()))
		Expect(inst.IsLive()).To(BeFalse())
	})

	It("should serve requests with the current configuration", func() {
		rec := httptest.NewRecorder()
		inst.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(rec.Body.String()).To(Equal("pong"))

		Expect(inst.Apply(snapshot(2, "pang"))).To(BeTrue())

		rec = httptest.NewRecorder()
		inst.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(rec.Body.String()).To(Equal("pang"))
	})

	Describe("Apply", func() {
		It("should never install an older or equal snapshot", func() {
			Expect(inst.Apply(snapshot(3, "three"))).To(BeTrue())
			Expect(inst.Apply(snapshot(2, "two"))).To(BeFalse())
			Expect(inst.Apply(snapshot(3, "again"))).To(BeFalse())
			Expect(inst.Apply(nil)).To(BeFalse())

			Expect(inst.Config().String(configpipeline.KeyPingResponse, "")).To(Equal("three"))
		})

		It("should converge on the newest snapshot under concurrent applies", func() {
			var wg sync.WaitGroup
			for v := uint64(2); v <= 100; v++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					inst.Apply(snapshot(v, "x"))
				}()
			}
			wg.Wait()

			Expect(inst.Config().Version()).To(Equal(uint64(100)))
		})
	})

	Describe("Connection tracking", func() {
		It("should count connections and not go below zero", func() {
			inst.IncrementConn()
			inst.IncrementConn()
			Expect(inst.ActiveConnections()).To(Equal(2))

			inst.DecrementConn()
			inst.DecrementConn()
			inst.DecrementConn()
			Expect(inst.ActiveConnections()).To(Equal(0))
		})

		It("should smooth response times", func() {
			Expect(inst.EWMATime()).To(BeZero())

			inst.RecordResponse(100 * time.Millisecond)
			Expect(inst.EWMATime()).To(Equal(100 * time.Millisecond))

			inst.RecordResponse(200 * time.Millisecond)
			Expect(inst.EWMATime()).To(Equal(120 * time.Millisecond))
		})
	})

	Describe("Run", func() {
		It("should apply events until the subscription ends", func() {
			bus := broadcast.New[configpipeline.ChangeEvent](broadcast.TopicConfigurationChanged)
			sub, err := bus.Subscribe(inst.ID(), 1)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan struct{})
			go func() {
				defer close(done)
				inst.Run(context.Background(), sub)
			}()

			Eventually(inst.IsLive).Should(BeTrue())

			Expect(bus.Publish(context.Background(), configpipeline.ChangeEvent{
				PreviousVersion: 1,
				Configuration:   snapshot(2, "pang"),
			})).To(Succeed())

			Eventually(func() uint64 { return inst.Config().Version() }).Should(Equal(uint64(2)))

			bus.Unsubscribe(inst.ID())
			Eventually(done).Should(BeClosed())
			Expect(inst.IsLive()).To(BeFalse())
		})
	})
})

var _ = Describe("Coordinator", func() {
	var (
		bus    *instance.Bus
		logger *slog.Logger
	)

	BeforeEach(func() {
		bus = broadcast.New[configpipeline.ChangeEvent](broadcast.TopicConfigurationChanged)
		logger = slog.New(slog.DiscardHandler)
	})

	It("should validate its arguments", func() {
		_, err := instance.NewCoordinator(1, nil, bus, pingFactory, logger)
		Expect(err).To(HaveOccurred())
		_, err = instance.NewCoordinator(1, snapshot(1, "pong"), nil, pingFactory, logger)
		Expect(err).To(HaveOccurred())
		_, err = instance.NewCoordinator(1, snapshot(1, "pong"), bus, nil, logger)
		Expect(err).To(HaveOccurred())
	})

	It("should default to one instance per CPU", func() {
		c, err := instance.NewCoordinator(0, snapshot(1, "pong"), bus, pingFactory, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Instances()).NotTo(BeEmpty())
	})

	It("should deliver a published change to every instance", func() {
		c, err := instance.NewCoordinator(4, snapshot(1, "pong"), bus, pingFactory, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Start(context.Background())).To(Succeed())
		defer c.Stop()

		Expect(bus.Subscribers()).To(HaveLen(4))
		for _, inst := range c.Instances() {
			Expect(inst.IsLive()).To(BeTrue())
		}

		Expect(c.Publish(context.Background(), configpipeline.ChangeEvent{
			PreviousVersion: 1,
			Configuration:   snapshot(2, "pang"),
		})).To(Succeed())

		for _, inst := range c.Instances() {
			Eventually(func() string {
				return inst.Config().String(configpipeline.KeyPingResponse, "")
			}).Should(Equal("pang"))
		}
		Expect(c.Latest().Version()).To(Equal(uint64(2)))
	})

	It("should reject an event without a configuration", func() {
		c, err := instance.NewCoordinator(2, snapshot(1, "pong"), bus, pingFactory, logger)
		Expect(err).NotTo(HaveOccurred())

		err = c.Publish(context.Background(), configpipeline.ChangeEvent{PreviousVersion: 1})
		Expect(err).To(MatchError(instance.ErrNoConfiguration))
		Expect(c.Latest().Version()).To(Equal(uint64(1)))
	})

	It("should hand instances the latest snapshot published before start", func() {
		c, err := instance.NewCoordinator(2, snapshot(1, "pong"), bus, pingFactory, logger)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Publish(context.Background(), configpipeline.ChangeEvent{
			PreviousVersion: 1,
			Configuration:   snapshot(5, "early"),
		})).To(Succeed())

		Expect(c.Start(context.Background())).To(Succeed())
		defer c.Stop()

		for _, inst := range c.Instances() {
			Expect(inst.Config().Version()).To(Equal(uint64(5)))
		}
	})

	It("should refuse a second start and stop cleanly", func() {
		c, err := instance.NewCoordinator(2, snapshot(1, "pong"), bus, pingFactory, logger)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Start(context.Background())).To(Succeed())
		Expect(c.Start(context.Background())).To(HaveOccurred())

		c.Stop()
		Expect(bus.Subscribers()).To(BeEmpty())
		for _, inst := range c.Instances() {
			Expect(inst.IsLive()).To(BeFalse())
		}
		c.Stop()
	})
})
