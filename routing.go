// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

var ErrUnknownPolicy = errors.New("tribroker: unknown policy")

// Policy selects the queue a freshly generated item is routed to.
type Policy int

const (
	// PolicyRandom picks each queue with probability 1/3.
	PolicyRandom Policy = iota
	// PolicyWeighted picks principal, secundaria and terciaria
	// with probabilities 0.5, 0.3 and 0.2.
	PolicyWeighted
	// PolicyConditional routes on the parity of the numbers and falls back
	// to PolicyWeighted when no rule matches.
	PolicyConditional
)

func (p Policy) String() string {
	switch p {
	case PolicyRandom:
		return "random"
	case PolicyWeighted:
		return "weighted"
	case PolicyConditional:
		return "conditional"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the policy names and their Spanish aliases
// (aleatorio, ponderado, condicional).
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random", "aleatorio":
		return PolicyRandom, nil
	case "weighted", "ponderado":
		return PolicyWeighted, nil
	case "conditional", "condicional":
		return PolicyConditional, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// SelectQueue applies policy p to numbers, drawing randomness from r.
func SelectQueue(p Policy, numbers []int, r *rand.Rand) QueueID {
	switch p {
	case PolicyRandom:
		return Queues[r.IntN(queueCount)]
	case PolicyWeighted:
		return selectWeighted(r)
	case PolicyConditional:
		return selectConditional(numbers, r)
	}
	panic(fmt.Sprintf("tribroker: select with invalid policy %d", int(p)))
}

func selectWeighted(r *rand.Rand) QueueID {
	x := r.Float64()
	switch {
	case x < 0.5:
		return Principal
	case x < 0.8:
		return Secundaria
	default:
		return Terciaria
	}
}

// selectConditional has no rule for a pair with one even and one odd
// number; that case, like any other unmatched shape, goes to selectWeighted.
func selectConditional(numbers []int, r *rand.Rand) QueueID {
	even := 0
	for _, n := range numbers {
		if n%2 == 0 {
			even++
		}
	}
	odd := len(numbers) - even

	switch len(numbers) {
	case 2:
		if even == 2 {
			return Principal
		}
		if odd == 2 {
			return Secundaria
		}
	case 3:
		if even == 3 || odd == 3 {
			return Terciaria
		}
	}
	return selectWeighted(r)
}

// Router binds a policy to a random source. It is safe for concurrent use.
type Router struct {
	policy Policy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRouter resolves the policy name up front so that an unknown name fails
// here rather than on every selection.
func NewRouter(policy string, rng *rand.Rand) (*Router, error) {
	p, err := ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Router{policy: p, rng: rng}, nil
}

func (r *Router) Policy() Policy { return r.policy }

// Select returns the queue for numbers.
func (r *Router) Select(numbers []int) QueueID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return SelectQueue(r.policy, numbers, r.rng)
}
