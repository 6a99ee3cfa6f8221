package stresstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/trackload/internal/config"
	"github.com/studiowebux/trackload/internal/types"
)

// Flow is one scenario iteration. It must return promptly once ctx is done.
type Flow func(ctx context.Context, iteration int)

// ErrIterationPanicked is returned by Run when a flow panicked. The panic
// stops every scenario of the run.
var ErrIterationPanicked = errors.New("iteration panicked")

// IterationObserver is told about every scheduled iteration
type IterationObserver interface {
	IterationStarted(scenario string)
	IterationDropped(scenario string)
}

// ScenarioResult is the scheduling outcome of one scenario
type ScenarioResult struct {
	Name        string
	Planned     int
	Started     int
	Dropped     int
	Completed   int
	Interrupted bool // stopped by cancellation or maxDuration before the plan ran out
}

type nopObserver struct{}

func (nopObserver) IterationStarted(string) {}
func (nopObserver) IterationDropped(string) {}

// Driver runs scenario plans against their flows
type Driver struct {
	log      *zap.Logger
	observer IterationObserver
}

// NewDriver creates a driver. observer may be nil.
func NewDriver(log *zap.Logger, observer IterationObserver) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Driver{log: log, observer: observer}
}

// Run executes every plan concurrently and waits for all of them. Every
// plan needs a flow under its name. The returned error is ctx's error when
// the run was cancelled, or wraps ErrIterationPanicked when a flow panicked,
// in which case the other scenarios are stopped.
func (d *Driver) Run(ctx context.Context, plans []ScenarioPlan, flows map[string]Flow) ([]ScenarioResult, error) {
	for i := range plans {
		if err := plans[i].Validate(); err != nil {
			return nil, err
		}
		if flows[plans[i].Name] == nil {
			return nil, fmt.Errorf("no flow registered for scenario %s", plans[i].Name)
		}
	}

	results := make([]ScenarioResult, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i := range plans {
		plan := plans[i]
		flow := flows[plan.Name]
		g.Go(func() error {
			scnCtx := types.WithScenario(gctx, plan.Name)
			start := time.Now()
			d.log.Info("scenario started",
				zap.String("scenario", plan.Name),
				zap.String("executor", plan.Executor))

			var err error
			switch plan.Executor {
			case config.ExecutorSharedIterations:
				results[i], err = d.runSharedIterations(scnCtx, plan, flow)
			default:
				results[i], err = d.runArrivalRate(scnCtx, plan, flow)
			}
			if err != nil {
				d.log.Error("scenario aborted", zap.String("scenario", plan.Name), zap.Error(err))
				return err
			}

			d.log.Info("scenario finished",
				zap.String("scenario", plan.Name),
				zap.Int("iterations", results[i].Started),
				zap.Int("dropped", results[i].Dropped),
				zap.Bool("interrupted", results[i].Interrupted),
				zap.Duration("elapsed", time.Since(start)))
			return scnCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// call runs one iteration, turning a panic into ErrIterationPanicked
func call(ctx context.Context, flow Flow, it int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: iteration %d: %v", ErrIterationPanicked, it, r)
		}
	}()
	flow(ctx, it)
	return nil
}

// panicCause returns the panic that aborted ctx, if any
func panicCause(ctx context.Context) error {
	if err := context.Cause(ctx); errors.Is(err, ErrIterationPanicked) {
		return err
	}
	return nil
}

// runArrivalRate starts iterations at the planned offsets on a fixed pool of
// VUs. An iteration due while every VU is busy is dropped.
func (d *Driver) runArrivalRate(parent context.Context, plan ScenarioPlan, flow Flow) (ScenarioResult, error) {
	offsets := ArrivalOffsets(plan.Stages, plan.TimeUnit)
	res := ScenarioResult{Name: plan.Name, Planned: len(offsets)}

	ctx, abort := context.WithCancelCause(parent)
	defer abort(nil)

	// A slot is held from dispatch until the VU finishes, so a send on tasks
	// never blocks.
	slots := make(chan struct{}, plan.PreAllocatedVUs)
	tasks := make(chan int, plan.PreAllocatedVUs)
	var completed atomic.Int64
	var wg sync.WaitGroup
	for v := 0; v < plan.PreAllocatedVUs; v++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range tasks {
				if err := call(ctx, flow, it); err != nil {
					abort(err)
				} else {
					completed.Add(1)
				}
				<-slots
			}
		}()
	}

	start := time.Now()
	for i, offset := range offsets {
		if !waitUntil(ctx, start.Add(offset)) {
			res.Interrupted = true
			break
		}
		select {
		case slots <- struct{}{}:
			d.observer.IterationStarted(plan.Name)
			res.Started++
			tasks <- i
		default:
			d.observer.IterationDropped(plan.Name)
			res.Dropped++
			d.log.Debug("iteration dropped", zap.String("scenario", plan.Name), zap.Int("iteration", i))
		}
	}
	close(tasks)
	wg.Wait()

	res.Completed = int(completed.Load())
	return res, panicCause(ctx)
}

// runSharedIterations lets VUs pull iteration indexes from a shared counter
// until Iterations are taken or MaxDuration elapses
func (d *Driver) runSharedIterations(ctx context.Context, plan ScenarioPlan, flow Flow) (ScenarioResult, error) {
	res := ScenarioResult{Name: plan.Name, Planned: plan.Iterations}

	timeoutCtx, cancel := context.WithTimeout(ctx, plan.MaxDuration)
	defer cancel()
	runCtx, abort := context.WithCancelCause(timeoutCtx)
	defer abort(nil)

	var next, started, completed atomic.Int64
	var wg sync.WaitGroup
	for v := 0; v < plan.VUs; v++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				it := int(next.Add(1) - 1)
				if it >= plan.Iterations {
					return
				}
				d.observer.IterationStarted(plan.Name)
				started.Add(1)
				if err := call(runCtx, flow, it); err != nil {
					abort(err)
					return
				}
				completed.Add(1)
			}
		}()
	}
	wg.Wait()

	res.Started = int(started.Load())
	res.Completed = int(completed.Load())
	res.Interrupted = res.Completed < plan.Iterations
	return res, panicCause(runCtx)
}

// waitUntil blocks until t or until ctx is done. It reports whether t was
// reached.
func waitUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
