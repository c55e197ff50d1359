package strategy

import (
	"time"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

type leastResponseStrategy struct{}

// Select prefers an instance with no recorded latency, then the lowest
// EWMA scaled by in-flight requests.
func (l *leastResponseStrategy) Select(instances []*instance.Instance, _ string) *instance.Instance {
	if len(instances) == 0 {
		return nil
	}

	var chosen *instance.Instance
	var best time.Duration

	for _, inst := range instances {
		ewma := inst.EWMATime()
		if ewma == 0 {
			return inst
		}

		score := ewma * (time.Duration(inst.ActiveConnections()) + 1)
		if chosen == nil || score < best {
			chosen = inst
			best = score
		}
	}

	return chosen
}

func NewLeastResponseStrategy() Strategy {
	return &leastResponseStrategy{}
}
