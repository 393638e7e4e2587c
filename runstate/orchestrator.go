package runstate

import (
	"context"
	"fmt"

	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/envdo/lock"
	"github.com/projecteru2/envdo/policy"
	"github.com/projecteru2/envdo/types"
)

const fallbackWarning = "not all VMs set as requested, retrying individually"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPoolSize sets how many environments are processed at once.
func WithPoolSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithLocks sets the per-environment lock factory used around transitions.
func WithLocks(fn func(envID string) lock.Locker) Option {
	return func(o *Orchestrator) { o.locks = fn }
}

// Orchestrator applies one command to a set of environments.
type Orchestrator struct {
	acc      Accessor
	reporter Reporter
	poller   *Poller
	locks    func(envID string) lock.Locker
	poolSize int
}

// NewOrchestrator wires the accessor, reporter and poller together.
func NewOrchestrator(acc Accessor, reporter Reporter, poller *Poller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		acc:      acc,
		reporter: reporter,
		poller:   poller,
		poolSize: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run applies command to every environment in envIDs, or to every
// environment visible to the account when envIDs is empty. The command is
// validated before any request is made. The first error aborts the run.
func (o *Orchestrator) Run(ctx context.Context, command string, envIDs []string) error {
	rule, err := policy.Lookup(command)
	if err != nil {
		return err
	}
	logger := log.WithFunc("runstate.Run")

	if len(envIDs) == 0 {
		envs, err := o.acc.ListEnvironments(ctx)
		if err != nil {
			return fmt.Errorf("list environments: %w", err)
		}
		for _, env := range envs {
			envIDs = append(envIDs, env.ID)
		}
	}
	if len(envIDs) == 0 {
		logger.Infof(ctx, "no environments found")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.poolSize)
	for _, id := range envIDs {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			// a slot may free up only after another environment failed.
			if err := gctx.Err(); err != nil {
				return err
			}
			return o.processEnvironment(gctx, rule, id)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) processEnvironment(ctx context.Context, rule policy.Rule, envID string) error {
	env, err := o.acc.FetchEnvironment(ctx, envID)
	if err != nil {
		return fmt.Errorf("fetch environment %s: %w", envID, err)
	}
	o.reporter.Environment(env)
	if rule.IsList() {
		return nil
	}

	selected := rule.Select(env.VMs)
	if len(selected) == 0 {
		log.WithFunc("runstate.processEnvironment").Infof(ctx, "environment %s: no VMs eligible for %s", envID, rule.Command)
		return nil
	}

	var locker lock.Locker
	if o.locks != nil {
		locker = o.locks(envID)
	}
	return lock.WithLock(ctx, locker, func() error {
		return o.transition(ctx, rule, envID, types.VMIDs(selected))
	})
}

// transition moves ids to rule.Target, then reports their final state.
func (o *Orchestrator) transition(ctx context.Context, rule policy.Rule, envID string, ids []string) error {
	var err error
	if rule.Batchable {
		err = o.transitionBatch(ctx, rule, envID, ids)
	} else {
		err = o.transitionEach(ctx, rule, ids)
	}
	if err != nil {
		return err
	}

	for _, id := range ids {
		vm, err := o.acc.FetchVM(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch VM %s: %w", id, err)
		}
		o.reporter.VM(vm)
	}
	return nil
}

// transitionBatch issues one multiselect write. If any VM fails to converge
// the whole selection is retried one VM at a time.
func (o *Orchestrator) transitionBatch(ctx context.Context, rule policy.Rule, envID string, ids []string) error {
	o.reporter.BatchChange(envID, ids, rule.Requested)
	if err := o.acc.WriteBatchRunstate(ctx, envID, ids, rule.Requested); err != nil {
		return fmt.Errorf("set runstate %s on environment %s: %w", rule.Requested, envID, err)
	}
	failed, err := o.poller.WaitEnvironment(ctx, envID, ids, rule.Target)
	if err != nil {
		return fmt.Errorf("poll environment %s: %w", envID, err)
	}
	if len(failed) == 0 {
		return nil
	}
	log.WithFunc("runstate.transitionBatch").Warnf(ctx, "environment %s: %d of %d VM(s) did not reach %s", envID, len(failed), len(ids), rule.Target)
	o.reporter.Warn(fallbackWarning)
	return o.transitionEach(ctx, rule, ids)
}

func (o *Orchestrator) transitionEach(ctx context.Context, rule policy.Rule, ids []string) error {
	for _, id := range ids {
		if err := o.transitionOne(ctx, rule, id); err != nil {
			return err
		}
	}
	return nil
}

// transitionOne writes rule.Requested unless the VM already reports it, then
// waits for rule.Target. Non-convergence is reported, not returned.
func (o *Orchestrator) transitionOne(ctx context.Context, rule policy.Rule, id string) error {
	vm, err := o.acc.FetchVM(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch VM %s: %w", id, err)
	}
	o.reporter.Change(vm, rule.Requested)
	if vm.Runstate != rule.Requested {
		if err := o.acc.WriteVMRunstate(ctx, id, rule.Requested); err != nil {
			return fmt.Errorf("set runstate %s on VM %s: %w", rule.Requested, id, err)
		}
	}
	if _, err := o.poller.WaitVM(ctx, id, rule.Target); err != nil {
		return fmt.Errorf("poll VM %s: %w", id, err)
	}
	return nil
}
