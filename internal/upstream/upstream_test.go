package upstream_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
	"github.com/angeloszaimis/pokeapi-edge/internal/upstream"
)

func targetFor(server *httptest.Server, path string) upstream.Target {
	host, port, err := net.SplitHostPort(server.Listener.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	p, err := strconv.Atoi(port)
	Expect(err).NotTo(HaveOccurred())
	return upstream.Target{Host: host, Port: p, Path: path}
}

var _ = Describe("Target", func() {
	It("should read the location from configuration", func() {
		snap := configpipeline.NewSnapshot(1, map[string]string{
			configpipeline.KeyPokeAPIHost: "pokeapi.co",
			configpipeline.KeyPokeAPIPort: "443",
			configpipeline.KeyPokeAPIPath: "/api/v2/pokemon/",
		})

		target, err := upstream.TargetFromConfig(snap)
		Expect(err).NotTo(HaveOccurred())
		Expect(target.URL()).To(Equal("https://pokeapi.co:443/api/v2/pokemon/"))
	})

	It("should use plain http on other ports", func() {
		Expect(upstream.Target{Host: "localhost", Port: 8081, Path: "/list"}.URL()).To(Equal("http://localhost:8081/list"))
	})

	It("should fail on missing or malformed settings", func() {
		_, err := upstream.TargetFromConfig(configpipeline.NewSnapshot(1, nil))
		Expect(err).To(MatchError(ContainSubstring(configpipeline.KeyPokeAPIHost)))

		_, err = upstream.TargetFromConfig(configpipeline.NewSnapshot(1, map[string]string{
			configpipeline.KeyPokeAPIHost: "pokeapi.co",
			configpipeline.KeyPokeAPIPort: "https",
		}))
		Expect(err).To(MatchError(ContainSubstring(configpipeline.KeyPokeAPIPort)))
	})
})

var _ = Describe("Client", func() {
	var (
		client *upstream.Client
		server *httptest.Server
		body   string
		status int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/v2/pokemon/"))
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		client = upstream.NewClient(nil, slog.New(slog.DiscardHandler))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should unwrap a results envelope", func() {
		body = `{"count":3,"results":[{"name":"a"},{"name":"b"},{"name":"c"}]}`

		items, err := client.Fetch(context.Background(), targetFor(server, "/api/v2/pokemon/"))
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(3))
		Expect(string(items[0])).To(MatchJSON(`{"name":"a"}`))
	})

	It("should accept a top-level array", func() {
		body = ` [{"name":"a"}] `

		items, err := client.Fetch(context.Background(), targetFor(server, "/api/v2/pokemon/"))
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
	})

	It("should report a non-success status", func() {
		status = http.StatusBadGateway

		_, err := client.Fetch(context.Background(), targetFor(server, "/api/v2/pokemon/"))

		var upstreamErr *upstream.Error
		Expect(errors.As(err, &upstreamErr)).To(BeTrue())
		Expect(upstreamErr.StatusCode).To(Equal(http.StatusBadGateway))
	})

	It("should reject a body that is not a list", func() {
		body = `{"detail":"nope"}`

		_, err := client.Fetch(context.Background(), targetFor(server, "/api/v2/pokemon/"))
		Expect(err).To(MatchError(ContainSubstring("no results")))
	})

	It("should honour context cancellation", func() {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer slow.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Fetch(ctx, targetFor(slow, "/"))
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
