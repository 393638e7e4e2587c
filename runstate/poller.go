package runstate

import (
	"context"
	"time"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/envdo/types"
)

// observeFunc returns the current snapshots of the monitored VMs, in server order.
type observeFunc func(context.Context) ([]types.VM, error)

// Poller waits for groups of VMs to reach a runstate.
type Poller struct {
	acc      Accessor
	reporter Reporter

	// Interval is slept before every observation.
	Interval time.Duration
	// Limit caps the number of observations per wait.
	Limit int
	// Sleep is replaceable in tests; it must honor ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a Poller with the given timing.
func NewPoller(acc Accessor, reporter Reporter, interval time.Duration, limit int) *Poller {
	return &Poller{
		acc:      acc,
		reporter: reporter,
		Interval: interval,
		Limit:    limit,
		Sleep:    sleepContext,
	}
}

// WaitEnvironment polls the environment until every VM in vmIDs has settled,
// and returns the ids that did not reach target.
func (p *Poller) WaitEnvironment(ctx context.Context, envID string, vmIDs []string, target types.Runstate) ([]string, error) {
	return p.wait(ctx, vmIDs, target, func(ctx context.Context) ([]types.VM, error) {
		env, err := p.acc.FetchEnvironment(ctx, envID)
		if err != nil {
			return nil, err
		}
		return env.VMs, nil
	})
}

// WaitVM polls a single VM. The result is empty when it reached target.
func (p *Poller) WaitVM(ctx context.Context, vmID string, target types.Runstate) ([]string, error) {
	return p.wait(ctx, []string{vmID}, target, func(ctx context.Context) ([]types.VM, error) {
		vm, err := p.acc.FetchVM(ctx, vmID)
		if err != nil {
			return nil, err
		}
		return []types.VM{*vm}, nil
	})
}

// wait implements the convergence loop. A VM is complete once it is at
// target, or once it has been seen busy and then leaves busy; the latter
// counts as failed unless it landed on target. VMs still incomplete when the
// poll budget runs out are failed as well.
func (p *Poller) wait(ctx context.Context, vmIDs []string, target types.Runstate, observe observeFunc) ([]string, error) {
	logger := log.WithFunc("runstate.wait")
	logger.Infof(ctx, "waiting up to %s for %d VM(s) to reach %s",
		units.HumanDuration(p.Interval*time.Duration(p.Limit)), len(vmIDs), target)

	monitored := make(map[string]bool, len(vmIDs))
	pending := make(map[string]bool, len(vmIDs))
	for _, id := range vmIDs {
		monitored[id] = true
		pending[id] = true
	}
	busySeen := map[string]bool{}
	failed := map[string]bool{}
	last := map[string]types.Runstate{}

	polls := 0
	for polls < p.Limit && len(pending) > 0 {
		if err := p.Sleep(ctx, p.Interval); err != nil {
			return nil, err
		}
		vms, err := observe(ctx)
		if err != nil {
			return nil, err
		}
		polls++

		for i := range vms {
			vm := &vms[i]
			if !monitored[vm.ID] {
				continue
			}
			p.reporter.VM(vm)
			last[vm.ID] = vm.Runstate
			if !pending[vm.ID] {
				continue
			}
			switch {
			case vm.Runstate == target || (busySeen[vm.ID] && vm.Runstate != types.RunstateBusy):
				delete(pending, vm.ID)
				delete(busySeen, vm.ID)
				if vm.Runstate != target {
					failed[vm.ID] = true
				}
			case vm.Runstate == types.RunstateBusy:
				busySeen[vm.ID] = true
			}
		}
	}

	var result []string
	for _, id := range vmIDs {
		if pending[id] || failed[id] {
			if pending[id] {
				logger.Warnf(ctx, "VM %s still %q after %d polls", id, last[id], polls)
			}
			result = append(result, id)
			p.reporter.Failed(id, target)
			continue
		}
		p.reporter.Converged(id, target)
	}
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
