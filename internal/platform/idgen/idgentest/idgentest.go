// Package idgentest provides deterministic identifier generators for tests.
package idgentest

import (
	"fmt"
	"sync/atomic"
)

// Sequence yields prefix-1, prefix-2, ... and is safe for concurrent use.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1))
}
