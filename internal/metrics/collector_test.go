package metrics_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.DiscardHandler)
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
	})

	requests := func() int64 {
		return collector.Snapshot("round-robin").TotalRequests
	}

	Describe("Start and event processing", func() {
		It("should process request events per instance", func() {
			collector.Start(ctx)

			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived, Instance: "a"})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventInstanceSelected, Instance: "a"})
			collector.Emit(metrics.MetricEvent{
				Type:       metrics.EventResponseCompleted,
				Instance:   "a",
				Duration:   50 * time.Millisecond,
				StatusCode: 201,
			})

			Eventually(func() int64 {
				return collector.Snapshot("round-robin").Instances["a"].StatusCodes[201]
			}).Should(Equal(int64(1)))

			im := collector.Snapshot("round-robin").Instances["a"]
			Expect(im.Requests).To(Equal(int64(1)))
			Expect(im.Selections).To(Equal(int64(1)))
			Expect(im.AvgResponse).To(Equal(50 * time.Millisecond))
		})

		It("should process service events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.MetricEvent{Type: metrics.EventHealthChanged, Name: "pokeApiHealthcheck", Healthy: true})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventFallbackServed, Name: "pokeapi"})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventValidationFailed, Name: "/greetings/{name}"})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventConfigReloaded, Version: 4})

			Eventually(func() uint64 {
				return collector.Snapshot("round-robin").ConfigVersion
			}).Should(Equal(uint64(4)))

			snap := collector.Snapshot("round-robin")
			Expect(snap.Dependencies["pokeApiHealthcheck"]).To(BeTrue())
			Expect(snap.Breakers["pokeapi"].Fallbacks).To(Equal(int64(1)))
			Expect(snap.ValidationErrors["/greetings/{name}"]).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			for range 5 {
				collector.EventChannel() <- metrics.MetricEvent{Type: metrics.EventRequestReceived, Instance: "a"}
			}

			collector.Start(ctx)
			cancel()

			Eventually(requests).Should(Equal(int64(5)))
		})
	})

	Describe("Emit", func() {
		It("should never block when the buffer is full", func() {
			small := metrics.NewCollector(1, log)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for range 10 {
					small.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived, Instance: "a"})
				}
			}()

			Eventually(done).Should(BeClosed())
		})

		It("should be safe on a nil collector", func() {
			var nilCollector *metrics.Collector
			Expect(func() { nilCollector.Emit(metrics.MetricEvent{}) }).NotTo(Panic())
		})
	})

	Describe("TrackBreaker", func() {
		It("should record breaker transitions", func() {
			collector.Start(ctx)

			opts := circuitbreaker.DefaultOptions()
			opts.MaxFailures = 1
			cb, err := circuitbreaker.New("pokeapi", opts)
			Expect(err).NotTo(HaveOccurred())

			collector.TrackBreaker(ctx, cb)

			_, _ = circuitbreaker.Execute(ctx, cb, func(context.Context) (int, error) {
				return 0, context.Canceled
			}, nil)

			Eventually(func() string {
				return collector.Snapshot("round-robin").Breakers["pokeapi"].State
			}).Should(Equal("OPEN"))
			Expect(collector.Snapshot("round-robin").Breakers["pokeapi"].Transitions).To(Equal(int64(1)))
		})
	})

	Describe("Report", func() {
		It("should log a summary on every tick", func() {
			out := &syncBuffer{}
			reporting := metrics.NewCollector(10, slog.New(slog.NewTextHandler(out, nil)))

			go reporting.Report(ctx, 20*time.Millisecond, "round-robin")

			Eventually(out.String).Should(ContainSubstring("Metrics report"))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived, Instance: "a"})
			Eventually(requests).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			collector.Handler("least-connections").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Strategy).To(Equal("least-connections"))
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})
})
