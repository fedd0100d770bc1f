// Package balancer drives the distributed load-balancing protocol: it
// gathers the global point cloud at the coordinator, builds a
// partition tree there, replicates it to every worker, and tracks the
// per-worker load imbalance that triggers rebuilds.
package balancer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dynlb/internal/collective"
	"github.com/dynlb/internal/morton"
	"github.com/dynlb/internal/partition"
	apperrors "github.com/dynlb/pkg/errors"
	"github.com/dynlb/pkg/utils"
)

// tracerName identifies the balancer's spans.
const tracerName = "dynlb/balancer"

// Mode selects the partitioning algorithm.
type Mode int

const (
	// ModeRadix splits at the point median until cells shrink to the
	// cutoff.
	ModeRadix Mode = iota
	// ModeRCB bisects recursively down to a fixed leaf count.
	ModeRCB
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRadix:
		return "radix"
	case ModeRCB:
		return "rcb"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "radix":
		return ModeRadix, nil
	case "rcb":
		return ModeRCB, nil
	default:
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown balance mode %q (valid: radix, rcb)", s)
	}
}

// Points is a borrowed view of a worker's local point cloud: three
// parallel coordinate arrays. The balancer never retains it past the
// call it was passed to.
type Points struct {
	X, Y, Z []float64
}

// Len returns the number of points.
func (p Points) Len() int {
	return len(p.X)
}

func (p Points) validate() error {
	if len(p.Y) != len(p.X) || len(p.Z) != len(p.X) {
		return apperrors.Newf(apperrors.CodeInvalidArgument,
			"coordinate arrays must have equal length: %d/%d/%d", len(p.X), len(p.Y), len(p.Z))
	}
	return nil
}

// Config holds the balancer parameters.
type Config struct {
	// TaskHint bounds the parallelism of internal loops such as key
	// computation and leaf recounting; 0 selects the hardware optimum.
	TaskHint int

	// Cutoff is mode-dependent. Radix: the maximum leaf size, with
	// values <= 0 selecting max(1, G/(W*64)). RCB: the target leaf
	// count, with 0 selecting one leaf per worker; negative values are
	// accepted as the legacy negated encoding of the same count.
	Cutoff int

	// Epsilon is the imbalance slack: Update rebuilds once the ratio
	// exceeds 1 + Epsilon or stops being finite. Must be >= 0.
	Epsilon float64

	// Mode selects the partitioner.
	Mode Mode

	// Logger receives progress and degenerate-input warnings; nil
	// discards them.
	Logger utils.Logger

	// Metrics receives balance observations; nil disables them.
	Metrics *Metrics
}

func (c *Config) validate() error {
	if c.Epsilon < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "epsilon must be >= 0, got %g", c.Epsilon)
	}
	switch c.Mode {
	case ModeRadix, ModeRCB:
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown balance mode %d", int(c.Mode))
	}
	return nil
}

// Balancer is a stateful tree balancer handle. All collective methods
// must be entered by every rank of the group in the same order; the
// handle itself is not safe for concurrent collective calls, but the
// local queries may run concurrently with each other between them.
type Balancer struct {
	id      string
	comm    collective.Comm
	cfg     Config
	logger  utils.Logger
	workers int
	tracer  trace.Tracer

	tree      atomic.Pointer[partition.Tree]
	imbalance float64
	counts    []int64
	localN    int
	destroyed bool
}

// Create builds a balancer collectively: every rank contributes its
// local points, the coordinator partitions the global cloud, and every
// rank installs an identical copy of the resulting tree.
//
// A global point count of zero fails with DEGENERATE_INPUT on every
// rank. A zero-volume bounding box only provokes a warning; the build
// runs unchanged: cells split along the axes that have extent, and
// coincident coordinates are ordered by index, so the leaves still
// partition the points. There is no separate index-order fallback.
func Create(ctx context.Context, comm collective.Comm, cfg Config, pts Points) (*Balancer, error) {
	if comm == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "nil collective")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := pts.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	b := &Balancer{
		id:      ksuid.New().String(),
		comm:    comm,
		cfg:     cfg,
		workers: comm.Size(),
		tracer:  otel.Tracer(tracerName),
	}
	b.logger = logger.WithField("balancer", b.id).WithField("rank", comm.Rank())

	ctx, span := b.tracer.Start(ctx, "balancer.create", trace.WithAttributes(
		attribute.Int("dynlb.points", pts.Len()),
		attribute.String("dynlb.mode", cfg.Mode.String()),
	))
	defer span.End()

	if err := b.rebuild(ctx, pts); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Float64("dynlb.imbalance", b.imbalance))
	b.logger.Info("balancer created: mode=%s workers=%d local=%d imbalance=%g",
		cfg.Mode, b.workers, b.localN, b.imbalance)
	return b, nil
}

// rebuild runs the gather -> partition -> broadcast pipeline and swaps
// the new tree in atomically. It is the shared core of Create and the
// rebuild arm of Update.
func (b *Balancer) rebuild(ctx context.Context, pts Points) error {
	timer := utils.NewTimer("rebuild")

	gather := timer.Start("gather")
	n := pts.Len()
	counts, err := b.comm.GatherInt(ctx, n)
	if err != nil {
		return err
	}
	gx, err := b.comm.GatherFloat64(ctx, pts.X)
	if err != nil {
		return err
	}
	gy, err := b.comm.GatherFloat64(ctx, pts.Y)
	if err != nil {
		return err
	}
	gz, err := b.comm.GatherFloat64(ctx, pts.Z)
	if err != nil {
		return err
	}
	gather.Stop()

	// A coordinator-side build failure is replicated instead of
	// returned straight away: bailing out before the broadcast would
	// leave the other ranks stuck in it.
	var payload []byte
	var built *partition.Tree
	var buildErr error
	if b.comm.Rank() == 0 {
		build := timer.Start("build")
		payload, built, buildErr = b.coordinatorBuild(counts, gx, gy, gz)
		build.Stop()
		if buildErr != nil {
			payload = encodeFailure(buildErr)
		}
	}

	bcast := timer.Start("broadcast")
	payload, err = b.comm.Broadcast(ctx, payload)
	bcast.Stop()
	if err != nil {
		return err
	}

	state, err := decodeState(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, "balance state malformed", err)
	}
	if state.degenerate {
		return apperrors.New(apperrors.CodeDegenerateInput, "global point count is zero, no partition possible")
	}
	if state.failMsg != "" {
		if buildErr != nil {
			return buildErr
		}
		return apperrors.Newf(apperrors.CodeCollectiveFailure, "coordinator build failed: %s", state.failMsg)
	}

	tree := built
	if b.comm.Rank() != 0 {
		tree, err = partition.UnmarshalTree(state.image)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeCollectiveFailure, "tree image malformed", err)
		}
	}

	b.tree.Store(tree)
	b.imbalance = state.imbalance
	b.counts = state.counts
	b.localN = n

	b.cfg.Metrics.observeBalance(state.imbalance, n)
	b.logger.Debug("%s", timer.Summary())
	return nil
}

// coordinatorBuild partitions the gathered global cloud and serialises
// the state to replicate. Runs on rank 0 only.
func (b *Balancer) coordinatorBuild(counts []int, gx, gy, gz []float64) ([]byte, *partition.Tree, error) {
	global := 0
	for _, c := range counts {
		global += c
	}
	if global == 0 {
		return encodeDegenerate(), nil, nil
	}

	if box := morton.BoundsOf(gx, gy, gz); box.Volume() == 0 && global > b.workers {
		b.logger.Warn("bounding box has zero volume over %d points; coincident coordinates split in index order", global)
	}

	var tree *partition.Tree
	var err error
	switch b.cfg.Mode {
	case ModeRCB:
		leaves := b.cfg.Cutoff
		if leaves < 0 {
			leaves = -leaves
		}
		if leaves == 0 {
			leaves = b.workers
		}
		tree, err = partition.BuildRCB(gx, gy, gz, leaves)
	default:
		cutoff := b.cfg.Cutoff
		if cutoff <= 0 {
			cutoff = partition.DefaultRadixCutoff(global, b.workers)
		}
		tree, err = partition.BuildRadix(gx, gy, gz, cutoff)
	}
	if err != nil {
		return nil, nil, err
	}

	tree.AssignRanks(b.workers)
	rankCounts := tree.RankCounts(b.workers)
	imbalance := partition.Imbalance(rankCounts)

	payload := encodeState(imbalance, rankCounts, partition.MarshalTree(tree))
	return payload, tree, nil
}

// PointAssign returns the worker that owns the cell containing p.
// Local, no collective, no allocation. Returns -1 on a destroyed
// handle.
func (b *Balancer) PointAssign(p [3]float64) int32 {
	tree := b.tree.Load()
	if tree == nil {
		return -1
	}
	return tree.PointAssign(p)
}

// BoxAssign writes the distinct workers owning leaves intersecting
// [lo, hi] into out and returns the count. Local, no collective. out
// must hold at least Workers() entries.
func (b *Balancer) BoxAssign(lo, hi [3]float64, out []int32) int {
	tree := b.tree.Load()
	if tree == nil {
		return 0
	}
	return tree.BoxAssign(lo, hi, out)
}

// RankCounts returns a copy of the per-worker point-count vector
// recorded by the last collective call.
func (b *Balancer) RankCounts() []int64 {
	return append([]int64(nil), b.counts...)
}

// Imbalance returns the current max/min per-worker load ratio.
func (b *Balancer) Imbalance() float64 {
	return b.imbalance
}

// LocalPoints returns the local point count recorded by the last
// collective call.
func (b *Balancer) LocalPoints() int {
	return b.localN
}

// Workers returns the group size fixed at create time.
func (b *Balancer) Workers() int {
	return b.workers
}

// TreeSize returns the node count of the current tree.
func (b *Balancer) TreeSize() int {
	tree := b.tree.Load()
	if tree == nil {
		return 0
	}
	return len(tree.Nodes)
}

// ID returns the handle's identifier, unique per rank.
func (b *Balancer) ID() string {
	return b.id
}

// Epsilon returns the configured imbalance slack.
func (b *Balancer) Epsilon() float64 {
	return b.cfg.Epsilon
}

// Destroy releases the tree and marks the handle dead. Local: the
// transports used here need no collective teardown. Subsequent
// collective calls fail with INVALID_ARGUMENT.
func (b *Balancer) Destroy() {
	b.destroyed = true
	b.tree.Store(nil)
	b.counts = nil
	b.logger.Debug("balancer destroyed")
}
