package collective

import (
	"context"
	"sync"

	apperrors "github.com/dynlb/pkg/errors"
)

// Hub is the rendezvous engine behind both transports. Each round
// collects one payload per rank, applies the operation once the last
// rank arrives, and releases every waiter with its share of the
// result.
//
// The one-shot Morton balancer and the tree balancer both drive their
// gather/scatter skeletons through this single engine.
type Hub struct {
	size  int
	mu    sync.Mutex
	round *round
}

type round struct {
	op        Op
	inputs    [][]byte
	deposited []bool
	arrived   int
	outputs   [][]byte
	err       error
	done      chan struct{}
}

func newRound(size int) *round {
	return &round{
		inputs:    make([][]byte, size),
		deposited: make([]bool, size),
		done:      make(chan struct{}),
	}
}

// NewHub creates a rendezvous hub for a group of the given size.
func NewHub(size int) (*Hub, error) {
	if size <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "group size must be > 0, got %d", size)
	}
	return &Hub{size: size, round: newRound(size)}, nil
}

// Size returns the group size.
func (h *Hub) Size() int {
	return h.size
}

// Exchange contributes rank's payload to the current round and blocks
// until the round completes or ctx is done. Abandoning the wait leaves
// the deposit in place, so the remaining ranks still complete.
func (h *Hub) Exchange(ctx context.Context, rank int, op Op, payload []byte) ([]byte, error) {
	if rank < 0 || rank >= h.size {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "rank %d out of range [0, %d)", rank, h.size)
	}

	h.mu.Lock()
	r := h.round

	if r.arrived == 0 {
		r.op = op
	} else if op != r.op && r.err == nil {
		r.err = apperrors.Newf(apperrors.CodeInvalidArgument,
			"mismatched collective participation: rank %d entered %s while the round runs %s", rank, op, r.op)
	}

	if r.deposited[rank] {
		h.mu.Unlock()
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "rank %d entered the same collective twice", rank)
	}
	r.deposited[rank] = true
	r.inputs[rank] = payload
	r.arrived++

	if r.arrived == h.size {
		if r.err == nil {
			r.outputs, r.err = apply(r.op, r.inputs)
		}
		close(r.done)
		h.round = newRound(h.size)
	}
	h.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "collective interrupted", ctx.Err())
	}

	if r.err != nil {
		return nil, r.err
	}
	return r.outputs[rank], nil
}

// apply computes per-rank outputs from the full input set.
func apply(op Op, inputs [][]byte) ([][]byte, error) {
	size := len(inputs)
	outputs := make([][]byte, size)

	switch op {
	case OpGather:
		total := 0
		for _, in := range inputs {
			total += len(in)
		}
		buf := make([]byte, 0, total)
		for _, in := range inputs {
			buf = append(buf, in...)
		}
		outputs[0] = buf

	case OpBroadcast:
		for r := range outputs {
			outputs[r] = inputs[0]
		}

	case OpScatter:
		parts, err := DecodeParts(inputs[0], size)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "scatter payload malformed", err)
		}
		copy(outputs, parts)

	case OpAllReduce:
		sum, err := DecodeInt64s(inputs[0])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "allreduce payload malformed", err)
		}
		for rank := 1; rank < size; rank++ {
			vals, err := DecodeInt64s(inputs[rank])
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "allreduce payload malformed", err)
			}
			if len(vals) != len(sum) {
				return nil, apperrors.Newf(apperrors.CodeInvalidArgument,
					"allreduce vector length mismatch: rank %d sent %d elements, rank 0 sent %d", rank, len(vals), len(sum))
			}
			for i, v := range vals {
				sum[i] += v
			}
		}
		buf := EncodeInt64s(sum)
		for r := range outputs {
			outputs[r] = buf
		}

	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown collective op %d", op)
	}

	return outputs, nil
}

// hubExchanger is a direct, in-process attachment to a Hub.
type hubExchanger struct {
	hub  *Hub
	rank int
}

// Attach returns an Exchanger bound to rank on this hub.
func (h *Hub) Attach(rank int) Exchanger {
	return &hubExchanger{hub: h, rank: rank}
}

func (e *hubExchanger) Exchange(ctx context.Context, op Op, payload []byte) ([]byte, error) {
	return e.hub.Exchange(ctx, e.rank, op, payload)
}

func (e *hubExchanger) Rank() int { return e.rank }

func (e *hubExchanger) Size() int { return e.hub.size }

func (e *hubExchanger) Close() error { return nil }
