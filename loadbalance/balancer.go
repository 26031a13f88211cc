// Package loadbalance picks which render host a client session binds to.
//
// A client picks once, at Dial, and keeps that host for its whole lifetime:
// proxies hold handles that only mean something on the host that issued them.
//
//   - RoundRobin:      spread sessions evenly over equal hosts
//   - WeightedRandom:  hosts with different capacity
//   - ConsistentHash:  the same client id lands on the same host, so a
//     reconnecting client finds its scene again
package loadbalance

import (
	"fmt"

	"renderlink/registry"
)

const (
	RoundRobin     = "round_robin"
	WeightedRandom = "weighted_random"
	ConsistentHash = "consistent_hash"
)

// Balancer is the interface for load balancing strategies.
type Balancer interface {
	// Pick selects one instance. key identifies the client session; strategies
	// that do not need affinity ignore it. Must be goroutine-safe.
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer for a config value. An empty name is round robin.
func New(name string) (Balancer, error) {
	switch name {
	case "", RoundRobin:
		return &RoundRobinBalancer{}, nil
	case WeightedRandom:
		return &WeightedRandomBalancer{}, nil
	case ConsistentHash:
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown balancer %q", name)
	}
}
