// Package local provides an in-process collective group: every rank is
// a goroutine attached to one shared rendezvous hub. The test suites
// and the simulation harness run on it.
package local

import (
	"github.com/dynlb/internal/collective"
)

// NewGroup creates an in-process group of n ranks. Each returned Comm
// belongs to one rank and must be driven from its own goroutine.
func NewGroup(n int) ([]collective.Comm, error) {
	hub, err := collective.NewHub(n)
	if err != nil {
		return nil, err
	}

	comms := make([]collective.Comm, n)
	for rank := 0; rank < n; rank++ {
		comms[rank] = collective.NewComm(hub.Attach(rank))
	}
	return comms, nil
}
