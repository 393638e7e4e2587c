// Package runstate drives VM runstate transitions: it selects eligible VMs,
// issues batched or per-VM state changes and polls until they converge.
package runstate

import (
	"context"

	"github.com/projecteru2/envdo/types"
)

// Accessor is the remote I/O boundary. Every error it returns is fatal to the
// current invocation.
type Accessor interface {
	ListEnvironments(ctx context.Context) ([]types.Environment, error)
	FetchEnvironment(ctx context.Context, id string) (*types.Environment, error)
	FetchVM(ctx context.Context, id string) (*types.VM, error)
	WriteVMRunstate(ctx context.Context, vmID string, state types.Runstate) error
	WriteBatchRunstate(ctx context.Context, envID string, vmIDs []string, state types.Runstate) error
}

// Reporter receives what the engine observes and decides. Implementations
// must be safe for concurrent use when environments run in parallel.
type Reporter interface {
	// Environment is called once per environment with its full VM table.
	Environment(env *types.Environment)
	// VM is called for every observed VM snapshot.
	VM(vm *types.VM)
	// Change announces a single-VM write.
	Change(vm *types.VM, requested types.Runstate)
	// BatchChange announces a multiselect write.
	BatchChange(envID string, vmIDs []string, requested types.Runstate)
	Converged(vmID string, state types.Runstate)
	Failed(vmID string, target types.Runstate)
	Warn(msg string)
}
