package strategy

import (
	"fmt"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

const (
	RoundRobin    = "round-robin"
	Random        = "random"
	LeastConn     = "least-connections"
	LeastResponse = "least-response"
	ClientHash    = "client-hash"
)

// Names lists the accepted strategy names.
var Names = []string{RoundRobin, Random, LeastConn, LeastResponse, ClientHash}

type Strategy interface {
	// Select returns one of instances, or nil when there are none. key
	// identifies the client; strategies without affinity ignore it.
	Select(instances []*instance.Instance, key string) *instance.Instance
}

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch name {
	case RoundRobin:
		return NewRoundRobinStrategy(), nil
	case Random:
		return NewRandomStrategy(), nil
	case LeastConn:
		return NewLeastConnStrategy(), nil
	case LeastResponse:
		return NewLeastResponseStrategy(), nil
	case ClientHash:
		return NewClientHashStrategy(100), nil
	default:
		return nil, fmt.Errorf("unknown dispatch strategy %q", name)
	}
}
