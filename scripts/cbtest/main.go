// Cbtest drives a running edge service through the circuit breaker
// lifecycle using the flakyupstream helper as the pokemon API.
//
// Usage:
//
//	go run ./scripts/flakyupstream -port 8081 &
//	POKE_API_HOST=localhost POKE_API_PORT=8081 go run ./cmd &
//	go run ./scripts/cbtest -edge http://localhost:8080 -upstream http://localhost:8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

const (
	headerBreakerState = "X-Circuit-Breaker-State"
	headerInstanceID   = "X-Instance-Id"
)

func main() {
	var (
		edgeURL     = flag.String("edge", "http://localhost:8080", "Edge service URL")
		upstreamURL = flag.String("upstream", "http://localhost:8081", "Flaky upstream control URL")
		requests    = flag.Int("requests", 10, "Requests per phase")
		resetWait   = flag.Duration("reset-wait", 0, "Wait before the recovery phase, 0 skips it")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║         CIRCUIT BREAKER & FALLBACK TEST                        ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	instanceHits := runPhase(client, *edgeURL, *requests)
	for id, n := range instanceHits {
		fmt.Printf("  instance %s served %d requests\n", id, n)
	}
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 2: Upstream Failure ━━━" + colorReset)
	if err := toggle(client, *upstreamURL+"/fail"); err != nil {
		fmt.Printf(colorRed+"  Could not switch upstream to failing mode: %v\n"+colorReset, err)
		os.Exit(1)
	}
	runPhase(client, *edgeURL, *requests)
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 3: Health and Breaker Status ━━━" + colorReset)
	if resp, err := client.Get(*edgeURL + "/healthy"); err != nil {
		fmt.Printf(colorYellow+"  Could not fetch /healthy: %v\n"+colorReset, err)
	} else {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		color := colorGreen
		if resp.StatusCode != http.StatusOK {
			color = colorRed
		}
		fmt.Printf(color+"  /healthy -> %d\n"+colorReset, resp.StatusCode)
		fmt.Printf("  %s\n", body)
	}
	if breakers, err := getBreakers(client, *edgeURL+"/breakers"); err != nil {
		fmt.Printf(colorYellow+"  Could not fetch /breakers: %v\n"+colorReset, err)
	} else {
		for _, b := range breakers {
			color := colorGreen
			if b.State != "CLOSED" {
				color = colorRed
			}
			fmt.Printf("  breaker %s -> "+color+"%s"+colorReset+" (consecutive failures: %d)\n", b.Name, b.State, b.ConsecutiveFailures)
		}
	}
	fmt.Println()

	if *resetWait > 0 {
		fmt.Println(colorBlue + "━━━ PHASE 4: Recovery ━━━" + colorReset)
		if err := toggle(client, *upstreamURL+"/recover"); err != nil {
			fmt.Printf(colorRed+"  Could not recover upstream: %v\n"+colorReset, err)
			os.Exit(1)
		}
		fmt.Printf("  Waiting %v for the breaker to allow a trial call...\n", *resetWait)
		time.Sleep(*resetWait)
		runPhase(client, *edgeURL, *requests)
		fmt.Println()
	}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                    TEST COMPLETE                               ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()
	fmt.Println("Check the edge service logs for breaker transitions.")
}

// runPhase sends n /pokemons requests and reports which ones were degraded.
func runPhase(client *http.Client, edge string, n int) map[string]int {
	hits := make(map[string]int)
	for i := 0; i < n; i++ {
		resp, err := client.Get(edge + "/pokemons")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		instance := resp.Header.Get(headerInstanceID)
		hits[instance]++

		state := resp.Header.Get(headerBreakerState)
		switch {
		case resp.StatusCode >= 500:
			fmt.Printf(colorRed+"  Request %d: instance=%s status=%d\n"+colorReset, i+1, instance, resp.StatusCode)
		case state != "":
			fmt.Printf(colorYellow+"  Request %d: instance=%s fallback breaker=%s body=%s\n"+colorReset, i+1, instance, state, trim(body))
		default:
			var items []json.RawMessage
			_ = json.Unmarshal(body, &items)
			fmt.Printf(colorGreen+"  Request %d: instance=%s items=%d\n"+colorReset, i+1, instance, len(items))
		}
	}
	return hits
}

func toggle(client *http.Client, url string) error {
	resp, err := client.Post(url, "text/plain", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

type breakerStatus struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

func getBreakers(client *http.Client, url string) ([]breakerStatus, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out []breakerStatus
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func trim(b []byte) string {
	const max = 40
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
