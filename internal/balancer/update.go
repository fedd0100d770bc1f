package balancer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dynlb/internal/partition"
	apperrors "github.com/dynlb/pkg/errors"
	"github.com/dynlb/pkg/parallel"
)

// Update refreshes the load statistics against the current tree and
// rebuilds it when the imbalance has drifted past 1 + epsilon or has
// stopped being finite. At most one rebuild happens per call, so an
// inherently unbalanceable input (more workers than points) does not
// loop.
//
// Collective: every rank must call Update in the same order with its
// current local points.
func (b *Balancer) Update(ctx context.Context, pts Points) error {
	if b.destroyed {
		return apperrors.New(apperrors.CodeInvalidArgument, "balancer has been destroyed")
	}
	if err := pts.validate(); err != nil {
		return err
	}

	ctx, span := b.tracer.Start(ctx, "balancer.update", trace.WithAttributes(
		attribute.Int("dynlb.points", pts.Len()),
	))
	defer span.End()

	local, err := b.recount(ctx, pts)
	if err != nil {
		span.RecordError(err)
		return err
	}

	global, err := b.comm.AllReduceInt64(ctx, local)
	if err != nil {
		span.RecordError(err)
		return err
	}

	imbalance := partition.Imbalance(global)
	b.imbalance = imbalance
	b.counts = global
	b.localN = pts.Len()
	b.cfg.Metrics.observeBalance(imbalance, pts.Len())

	rebuilt := false
	if imbalance > 1+b.cfg.Epsilon {
		// Covers +Inf as well: any comparison against it exceeds the
		// threshold, and the Imbalance contract rules out NaN.
		b.logger.Info("imbalance %g exceeds %g, rebuilding tree", imbalance, 1+b.cfg.Epsilon)
		b.cfg.Metrics.observeRebuild()
		if err := b.rebuild(ctx, pts); err != nil {
			span.RecordError(err)
			return err
		}
		rebuilt = true
	}

	span.SetAttributes(
		attribute.Float64("dynlb.imbalance", b.imbalance),
		attribute.Bool("dynlb.rebuilt", rebuilt),
	)
	return nil
}

// recount replays point storage against the local tree copy: each
// local point descends to its leaf and its assigned worker's slot is
// incremented. Fans out over the task hint.
func (b *Balancer) recount(ctx context.Context, pts Points) ([]int64, error) {
	tree := b.tree.Load()
	counts := make([]int64, b.workers)

	err := parallel.MapChunks(ctx, pts.Len(), b.cfg.TaskHint, func(start, end int) ([]int64, error) {
		part := make([]int64, b.workers)
		for i := start; i < end; i++ {
			rank := tree.PointAssign([3]float64{pts.X[i], pts.Y[i], pts.Z[i]})
			part[rank]++
		}
		return part, nil
	}, func(part []int64) {
		for i, c := range part {
			counts[i] += c
		}
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
