package strategy

import (
	"math/rand/v2"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

type randomStrategy struct{}

func (r *randomStrategy) Select(instances []*instance.Instance, _ string) *instance.Instance {
	if len(instances) == 0 {
		return nil
	}

	return instances[rand.IntN(len(instances))]
}

func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}
