package registry_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/registry"
)

var _ = Describe("Registry", func() {
	var reg *registry.Registry[int]

	BeforeEach(func() {
		reg = registry.New[int]("probe")
	})

	It("should store and return registered values", func() {
		Expect(reg.Register("a", 1)).To(Succeed())
		value, ok := reg.Get("a")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal(1))
	})

	It("should reject duplicate names", func() {
		Expect(reg.Register("a", 1)).To(Succeed())
		err := reg.Register("a", 2)

		var dup *registry.DuplicateNameError
		Expect(errors.As(err, &dup)).To(BeTrue())
		Expect(dup.Name).To(Equal("a"))
		Expect(err.Error()).To(ContainSubstring(`probe "a" already registered`))

		value, _ := reg.Get("a")
		Expect(value).To(Equal(1))
	})

	It("should reject empty names", func() {
		Expect(reg.Register("", 1)).NotTo(Succeed())
	})

	It("should list names in order", func() {
		Expect(reg.Register("b", 2)).To(Succeed())
		Expect(reg.Register("a", 1)).To(Succeed())
		Expect(reg.Names()).To(Equal([]string{"a", "b"}))
		Expect(reg.Len()).To(Equal(2))
	})

	It("should allow exactly one winner under concurrent registration", func() {
		const goroutines = 50

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes := 0

		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func(id int) {
				defer wg.Done()
				if reg.Register("shared", id) == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(reg.Snapshot()).To(HaveLen(1))
	})
})
