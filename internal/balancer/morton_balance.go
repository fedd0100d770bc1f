package balancer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dynlb/internal/collective"
	"github.com/dynlb/internal/morton"
	apperrors "github.com/dynlb/pkg/errors"
)

// MortonBalance redistributes points along the Z-order curve in a
// single shot: the coordinator orders the gathered global cloud by
// Morton key and cuts the ordered sequence into per-worker runs of
// floor(G/W) points, handing one extra point to each of the first
// G mod W workers. Every rank receives the target worker of each of
// its local points, in input order.
//
// Stateless and collective; no tree survives the call. hint bounds the
// coordinator's key-computation parallelism.
func MortonBalance(ctx context.Context, comm collective.Comm, hint int, pts Points) ([]int32, error) {
	if comm == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "nil collective")
	}
	if err := pts.validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "balancer.morton", trace.WithAttributes(
		attribute.Int("dynlb.points", pts.Len()),
	))
	defer span.End()

	counts, err := comm.GatherInt(ctx, pts.Len())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	gx, err := comm.GatherFloat64(ctx, pts.X)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	gy, err := comm.GatherFloat64(ctx, pts.Y)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	gz, err := comm.GatherFloat64(ctx, pts.Z)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var parts [][]int32
	if comm.Rank() == 0 {
		parts, err = mortonAssign(ctx, comm.Size(), counts, gx, gy, gz, hint)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	ranks, err := comm.ScatterInt32(ctx, parts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return ranks, nil
}

// mortonAssign computes each global point's target worker and splits
// the assignment back into per-rank slices. Runs on rank 0 only.
func mortonAssign(ctx context.Context, workers int, counts []int, gx, gy, gz []float64, hint int) ([][]int32, error) {
	order, _, err := morton.Ordering(ctx, gx, gy, gz, hint)
	if err != nil {
		return nil, err
	}

	global := len(gx)
	granks := make([]int32, global)

	run := global / workers
	rem := global % workers

	pos := 0
	for w := 0; w < workers; w++ {
		length := run
		if w < rem {
			length++
		}
		for k := 0; k < length; k++ {
			granks[order[pos]] = int32(w)
			pos++
		}
	}

	parts := make([][]int32, workers)
	off := 0
	for r, c := range counts {
		parts[r] = granks[off : off+c]
		off += c
	}
	return parts, nil
}
