package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	const inst = "instance-a"

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("IncrementRequests", func() {
		It("should track instances separately", func() {
			m.IncrementRequests(inst)
			m.IncrementRequests("instance-b")
			m.IncrementRequests(inst)

			snap := m.Snapshot("round-robin")
			Expect(snap.TotalRequests).To(Equal(int64(3)))
			Expect(snap.Instances[inst].Requests).To(Equal(int64(2)))
			Expect(snap.Instances["instance-b"].Requests).To(Equal(int64(1)))
		})
	})

	Describe("RecordInstanceSelection", func() {
		It("should count selections", func() {
			m.RecordInstanceSelection(inst)
			m.RecordInstanceSelection(inst)

			Expect(m.Snapshot("round-robin").Instances[inst].Selections).To(Equal(int64(2)))
		})
	})

	Describe("RecordResponse", func() {
		It("should track different status codes", func() {
			m.RecordResponse(inst, 10*time.Millisecond, 200)
			m.RecordResponse(inst, 10*time.Millisecond, 400)
			m.RecordResponse(inst, 10*time.Millisecond, 400)

			codes := m.Snapshot("round-robin").Instances[inst].StatusCodes
			Expect(codes[200]).To(Equal(int64(1)))
			Expect(codes[400]).To(Equal(int64(2)))
		})

		It("should calculate percentiles correctly", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse(inst, time.Duration(i)*time.Millisecond, 200)
			}

			im := m.Snapshot("round-robin").Instances[inst]
			Expect(im.P50Response).To(BeNumerically("~", 50*time.Millisecond, 1*time.Millisecond))
			Expect(im.P95Response).To(BeNumerically("~", 95*time.Millisecond, 1*time.Millisecond))
			Expect(im.P99Response).To(BeNumerically("~", 99*time.Millisecond, 1*time.Millisecond))
		})

		It("should limit stored response times to 1000", func() {
			for i := 1; i <= 1500; i++ {
				m.RecordResponse(inst, time.Duration(i)*time.Millisecond, 200)
			}

			Expect(m.Snapshot("round-robin").Instances[inst].AvgResponse).To(BeNumerically(">", 500*time.Millisecond))
		})
	})

	Describe("Breakers", func() {
		It("should count transitions but not the initial state", func() {
			m.RecordBreakerState("pokeapi", "CLOSED")
			m.RecordBreakerState("pokeapi", "OPEN")
			m.RecordBreakerState("pokeapi", "HALF-OPEN")
			m.RecordFallback("pokeapi")

			b := m.Snapshot("round-robin").Breakers["pokeapi"]
			Expect(b.State).To(Equal("HALF-OPEN"))
			Expect(b.Transitions).To(Equal(int64(2)))
			Expect(b.Fallbacks).To(Equal(int64(1)))
		})
	})

	Describe("UpdateHealthStatus", func() {
		It("should track dependency health changes", func() {
			m.UpdateHealthStatus("pokeApiHealthcheck", true)
			Expect(m.Snapshot("round-robin").Dependencies["pokeApiHealthcheck"]).To(BeTrue())

			m.UpdateHealthStatus("pokeApiHealthcheck", false)
			Expect(m.Snapshot("round-robin").Dependencies["pokeApiHealthcheck"]).To(BeFalse())
		})
	})

	Describe("Validation and configuration", func() {
		It("should count validation failures per route", func() {
			m.RecordValidationFailure("/greetings/{name}")
			m.RecordValidationFailure("/greetings/{name}")

			Expect(m.Snapshot("round-robin").ValidationErrors).To(HaveKeyWithValue("/greetings/{name}", int64(2)))
		})

		It("should keep the highest configuration version", func() {
			m.RecordConfigVersion(3)
			m.RecordConfigVersion(2)

			snap := m.Snapshot("round-robin")
			Expect(snap.ConfigVersion).To(Equal(uint64(3)))
			Expect(snap.ConfigReloads).To(Equal(int64(2)))
		})
	})

	Describe("Snapshot", func() {
		It("should carry the strategy name", func() {
			Expect(m.Snapshot("least-connections").Strategy).To(Equal("least-connections"))
		})

		It("should handle empty metrics", func() {
			snap := m.Snapshot("round-robin")

			Expect(snap.TotalRequests).To(Equal(int64(0)))
			Expect(snap.Instances).To(BeEmpty())
			Expect(snap.Breakers).To(BeEmpty())
		})

		It("should return an independent snapshot", func() {
			m.RecordResponse(inst, time.Millisecond, 200)

			snap := m.Snapshot("round-robin")
			snap.Instances[inst].StatusCodes[200] = 99

			Expect(m.Snapshot("round-robin").Instances[inst].StatusCodes[200]).To(Equal(int64(1)))
		})
	})
})
