// Package collective defines the blocking collective-communication
// contract the balancer runs on, plus a reusable rendezvous engine
// shared by the in-process and gRPC transports.
//
// All operations on one group are collectives: every rank must invoke
// them in the same order with compatible arguments, and each call
// blocks until the whole group has entered it. Rank 0 is the
// coordinator and the root of every rooted operation.
package collective

import (
	"context"
)

// Op identifies a collective operation kind. The rendezvous engine
// uses it to detect ranks entering different collectives in the same
// round.
type Op uint8

const (
	// OpGather concatenates every rank's payload at the root.
	OpGather Op = iota + 1
	// OpBroadcast hands the root's payload to every rank.
	OpBroadcast
	// OpScatter splits the root's framed payload into per-rank parts.
	OpScatter
	// OpAllReduce sums equal-length int64 vectors element-wise on
	// every rank.
	OpAllReduce
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpGather:
		return "gather"
	case OpBroadcast:
		return "broadcast"
	case OpScatter:
		return "scatter"
	case OpAllReduce:
		return "allreduce"
	default:
		return "unknown"
	}
}

// Exchanger moves one rank's payload through one collective round.
// Implementations: the in-process hub attachment and the gRPC client.
type Exchanger interface {
	// Exchange contributes payload to the round and returns this
	// rank's share of the result.
	Exchange(ctx context.Context, op Op, payload []byte) ([]byte, error)
	// Rank returns this participant's rank in [0, Size).
	Rank() int
	// Size returns the world size.
	Size() int
	// Close releases transport resources.
	Close() error
}

// Comm is the typed collective surface the balancer is written
// against.
type Comm interface {
	// Rank returns this participant's rank in [0, Size).
	Rank() int
	// Size returns the world size.
	Size() int

	// GatherInt collects one integer from every rank. The root
	// receives the full rank-ordered vector; other ranks receive nil.
	GatherInt(ctx context.Context, v int) ([]int, error)

	// GatherFloat64 collects a variable-length array from every rank.
	// The root receives the rank-ordered concatenation; other ranks
	// receive nil.
	GatherFloat64(ctx context.Context, vals []float64) ([]float64, error)

	// ScatterInt32 hands parts[r] to rank r. Only the root's parts
	// argument is consulted; it must hold exactly Size parts.
	ScatterInt32(ctx context.Context, parts [][]int32) ([]int32, error)

	// Broadcast hands the root's data to every rank.
	Broadcast(ctx context.Context, data []byte) ([]byte, error)

	// AllReduceInt64 sums equal-length vectors element-wise; every
	// rank receives the sum.
	AllReduceInt64(ctx context.Context, vals []int64) ([]int64, error)

	// Close releases transport resources. It does not tear down the
	// group for other ranks.
	Close() error
}
