package collective

import (
	"context"

	apperrors "github.com/dynlb/pkg/errors"
)

// comm adapts an Exchanger into the typed Comm surface. The encode and
// decode halves of every collective live here once, so the in-process
// and gRPC transports cannot drift apart.
type comm struct {
	ex Exchanger
}

// NewComm wraps an Exchanger in the typed collective surface.
func NewComm(ex Exchanger) Comm {
	return &comm{ex: ex}
}

func (c *comm) Rank() int { return c.ex.Rank() }

func (c *comm) Size() int { return c.ex.Size() }

func (c *comm) Close() error { return c.ex.Close() }

func (c *comm) GatherInt(ctx context.Context, v int) ([]int, error) {
	out, err := c.ex.Exchange(ctx, OpGather, EncodeInt64s([]int64{int64(v)}))
	if err != nil {
		return nil, err
	}
	if c.Rank() != 0 {
		return nil, nil
	}

	vals, err := DecodeInt64s(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "gather result malformed", err)
	}
	ints := make([]int, len(vals))
	for i, x := range vals {
		ints[i] = int(x)
	}
	return ints, nil
}

func (c *comm) GatherFloat64(ctx context.Context, vals []float64) ([]float64, error) {
	out, err := c.ex.Exchange(ctx, OpGather, EncodeFloat64s(vals))
	if err != nil {
		return nil, err
	}
	if c.Rank() != 0 {
		return nil, nil
	}

	all, err := DecodeFloat64s(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "gather result malformed", err)
	}
	return all, nil
}

func (c *comm) ScatterInt32(ctx context.Context, parts [][]int32) ([]int32, error) {
	var payload []byte
	if c.Rank() == 0 {
		if len(parts) != c.Size() {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument,
				"scatter needs %d parts, got %d", c.Size(), len(parts))
		}
		raw := make([][]byte, len(parts))
		for i, p := range parts {
			raw[i] = EncodeInt32s(p)
		}
		payload = EncodeParts(raw)
	}

	out, err := c.ex.Exchange(ctx, OpScatter, payload)
	if err != nil {
		return nil, err
	}

	vals, err := DecodeInt32s(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "scatter result malformed", err)
	}
	return vals, nil
}

func (c *comm) Broadcast(ctx context.Context, data []byte) ([]byte, error) {
	var payload []byte
	if c.Rank() == 0 {
		payload = data
	}
	return c.ex.Exchange(ctx, OpBroadcast, payload)
}

func (c *comm) AllReduceInt64(ctx context.Context, vals []int64) ([]int64, error) {
	out, err := c.ex.Exchange(ctx, OpAllReduce, EncodeInt64s(vals))
	if err != nil {
		return nil, err
	}

	sum, err := DecodeInt64s(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectiveFailure, "allreduce result malformed", err)
	}
	return sum, nil
}
