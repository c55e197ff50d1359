package circuitbreaker_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("LogTransitions", func() {
	It("should log each state change", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		opts := circuitbreaker.DefaultOptions()
		opts.MaxFailures = 1
		cb, err := circuitbreaker.New("pokeapi", opts)
		Expect(err).NotTo(HaveOccurred())

		out := &lockedBuffer{}
		circuitbreaker.LogTransitions(ctx, cb, slog.New(slog.NewTextHandler(out, nil)))

		_, _ = circuitbreaker.Execute(ctx, cb, func(context.Context) (int, error) {
			return 0, errors.New("boom")
		}, nil)

		Eventually(out.String).Should(And(
			ContainSubstring("Circuit breaker state changed"),
			ContainSubstring("breaker=pokeapi"),
			ContainSubstring("to=OPEN"),
		))
	})
})
