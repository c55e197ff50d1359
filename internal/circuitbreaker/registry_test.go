package circuitbreaker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
	"github.com/angeloszaimis/pokeapi-edge/internal/registry"
)

var _ = Describe("Registry", func() {
	var reg *circuitbreaker.Registry

	BeforeEach(func() {
		reg = circuitbreaker.NewRegistry()
	})

	Describe("Register", func() {
		It("should create a closed breaker", func() {
			cb, err := reg.Register("pokeapi", circuitbreaker.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should fail fast on a duplicate name", func() {
			_, err := reg.Register("pokeapi", circuitbreaker.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.Register("pokeapi", circuitbreaker.DefaultOptions())
			var dup *registry.DuplicateNameError
			Expect(errors.As(err, &dup)).To(BeTrue())
		})

		It("should reject invalid options", func() {
			options := circuitbreaker.DefaultOptions()
			options.CallTimeout = 0
			_, err := reg.Register("pokeapi", options)
			Expect(err).To(HaveOccurred())
			Expect(reg.Stats()).To(BeEmpty())
		})
	})

	Describe("GetBreaker", func() {
		It("should return the registered breaker", func() {
			cb, _ := reg.Register("pokeapi", circuitbreaker.DefaultOptions())
			found, ok := reg.GetBreaker("pokeapi")
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(cb))
		})

		It("should report unknown names", func() {
			_, ok := reg.GetBreaker("missing")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Stats", func() {
		It("should return state of all breakers", func() {
			options := circuitbreaker.DefaultOptions()
			options.MaxFailures = 1
			_, _ = reg.Register("healthy", options)
			failing, _ := reg.Register("failing", options)

			_, _ = circuitbreaker.Execute(context.Background(), failing, func(context.Context) (int, error) {
				return 0, errUpstream
			}, nil)

			stats := reg.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["healthy"]).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["failing"]).To(Equal(circuitbreaker.StateOpen))

			statuses := reg.Statuses()
			Expect(statuses).To(HaveLen(2))
			Expect(statuses[0].Name).To(Equal("failing"))
			Expect(statuses[0].ConsecutiveFailures).To(Equal(1))
		})
	})

	Describe("Concurrent access", func() {
		It("should register a name once under contention", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					_, _ = reg.Register("pokeapi", circuitbreaker.DefaultOptions())
				}()
			}
			wg.Wait()

			Expect(reg.Stats()).To(HaveLen(1))
		})
	})
})
