package strategy

import (
	"math"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

type leastConnStrategy struct{}

func (l *leastConnStrategy) Select(instances []*instance.Instance, _ string) *instance.Instance {
	if len(instances) == 0 {
		return nil
	}

	var best *instance.Instance
	bestConns := math.MaxInt32

	for _, inst := range instances {
		if conns := inst.ActiveConnections(); conns < bestConns {
			bestConns = conns
			best = inst
		}
	}

	return best
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}
