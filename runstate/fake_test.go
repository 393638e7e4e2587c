package runstate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/projecteru2/envdo/types"
)

// fakeVM follows script one state per read, then stays on state.
type fakeVM struct {
	name   string
	state  types.Runstate
	script []types.Runstate
}

func (v *fakeVM) read() types.Runstate {
	if len(v.script) > 0 {
		v.state, v.script = v.script[0], v.script[1:]
	}
	return v.state
}

// fakeCloud is an in-memory Accessor. Writes schedule the script returned by
// onWrite (default: busy, then the settled state) on the written VMs.
type fakeCloud struct {
	mu      sync.Mutex
	envs    map[string][]string
	envName map[string]string
	order   []string
	vms     map[string]*fakeVM
	calls   []string
	failOn  map[string]error
	onWrite func(vmID string, requested types.Runstate) []types.Runstate
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		envs:    map[string][]string{},
		envName: map[string]string{},
		vms:     map[string]*fakeVM{},
		failOn:  map[string]error{},
	}
}

func (f *fakeCloud) addEnv(id string, vms ...types.VM) {
	f.order = append(f.order, id)
	f.envName[id] = "env-" + id
	for _, vm := range vms {
		f.envs[id] = append(f.envs[id], vm.ID)
		f.vms[vm.ID] = &fakeVM{name: vm.Name, state: vm.Runstate}
	}
}

// script overrides the next reads of vmID.
func (f *fakeCloud) script(vmID string, states ...types.Runstate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vms[vmID].script = states
}

func settled(requested types.Runstate) types.Runstate {
	switch requested {
	case types.RunstateHalted:
		return types.RunstateStopped
	case types.RunstateRestarted:
		return types.RunstateRunning
	default:
		return requested
	}
}

func (f *fakeCloud) record(call string) error {
	f.calls = append(f.calls, call)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (f *fakeCloud) applyWrite(vmID string, requested types.Runstate) {
	vm := f.vms[vmID]
	if f.onWrite != nil {
		vm.script = f.onWrite(vmID, requested)
		return
	}
	vm.script = []types.Runstate{types.RunstateBusy, settled(requested)}
}

func (f *fakeCloud) ListEnvironments(_ context.Context) ([]types.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list"); err != nil {
		return nil, err
	}
	var out []types.Environment
	for _, id := range f.order {
		out = append(out, types.Environment{ID: id, Name: f.envName[id]})
	}
	return out, nil
}

func (f *fakeCloud) FetchEnvironment(_ context.Context, id string) (*types.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get env " + id); err != nil {
		return nil, err
	}
	ids, ok := f.envs[id]
	if !ok {
		return nil, fmt.Errorf("environment %s not found", id)
	}
	env := &types.Environment{ID: id, Name: f.envName[id]}
	for _, vmID := range ids {
		vm := f.vms[vmID]
		env.VMs = append(env.VMs, types.VM{ID: vmID, Name: vm.name, Runstate: vm.read()})
	}
	return env, nil
}

func (f *fakeCloud) FetchVM(_ context.Context, id string) (*types.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get vm " + id); err != nil {
		return nil, err
	}
	vm, ok := f.vms[id]
	if !ok {
		return nil, fmt.Errorf("vm %s not found", id)
	}
	return &types.VM{ID: id, Name: vm.name, Runstate: vm.read()}, nil
}

func (f *fakeCloud) WriteVMRunstate(_ context.Context, vmID string, state types.Runstate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("put vm %s %s", vmID, state)); err != nil {
		return err
	}
	f.applyWrite(vmID, state)
	return nil
}

func (f *fakeCloud) WriteBatchRunstate(_ context.Context, envID string, vmIDs []string, state types.Runstate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("put env %s [%s] %s", envID, strings.Join(vmIDs, " "), state)); err != nil {
		return err
	}
	for _, id := range vmIDs {
		f.applyWrite(id, state)
	}
	return nil
}

// writes returns only the state-changing calls.
func (f *fakeCloud) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "put ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCloud) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recorder is a Reporter that keeps every event as a line.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Environment(env *types.Environment) {
	r.add("env %s %d", env.ID, len(env.VMs))
}
func (r *recorder) VM(vm *types.VM) { r.add("vm %s %s", vm.ID, vm.Runstate) }
func (r *recorder) Change(vm *types.VM, requested types.Runstate) {
	r.add("change %s %s", vm.ID, requested)
}
func (r *recorder) BatchChange(envID string, vmIDs []string, requested types.Runstate) {
	r.add("batch %s [%s] %s", envID, strings.Join(vmIDs, " "), requested)
}
func (r *recorder) Converged(vmID string, state types.Runstate) { r.add("ok %s %s", vmID, state) }
func (r *recorder) Failed(vmID string, target types.Runstate)   { r.add("failed %s %s", vmID, target) }
func (r *recorder) Warn(msg string)                             { r.add("warn %s", msg) }

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// sleepCounter replaces real sleeping and records every requested duration.
type sleepCounter struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepCounter) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func (s *sleepCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slept)
}

func testPoller(acc Accessor, rep Reporter, limit int) (*Poller, *sleepCounter) {
	p := NewPoller(acc, rep, time.Second, limit)
	sc := &sleepCounter{}
	p.Sleep = sc.sleep
	return p, sc
}

func vm(id string, state types.Runstate) types.VM {
	return types.VM{ID: id, Name: "vm-" + id, Runstate: state}
}
