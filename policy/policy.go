package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/projecteru2/envdo/types"
)

// ErrUnknownCommand is returned by Lookup for names not in the table.
var ErrUnknownCommand = errors.New("unknown command")

// CommandList only reports environments; it has no transition rule.
const CommandList = "list"

// Rule describes how one command moves VMs between runstates.
type Rule struct {
	Command string
	// Sources are the runstates a VM must be in to be selected.
	Sources []types.Runstate
	// Requested is the value sent to the API.
	Requested types.Runstate
	// Target is the runstate the poller waits for.
	Target    types.Runstate
	Batchable bool
}

// IsList reports whether the rule performs no transition.
func (r Rule) IsList() bool { return r.Command == CommandList }

// Accepts reports whether a VM in state s is eligible for the transition.
func (r Rule) Accepts(s types.Runstate) bool {
	return slices.Contains(r.Sources, s)
}

// Select returns the eligible VMs, preserving order.
func (r Rule) Select(vms []types.VM) []types.VM {
	if r.IsList() {
		return nil
	}
	var out []types.VM
	for _, vm := range vms {
		if r.Accepts(vm.Runstate) {
			out = append(out, vm)
		}
	}
	return out
}

var table = []Rule{
	{Command: CommandList},
	{
		Command:   "start",
		Sources:   []types.Runstate{types.RunstateStopped},
		Requested: types.RunstateRunning,
		Target:    types.RunstateRunning,
		Batchable: true,
	},
	{
		Command:   "suspend",
		Sources:   []types.Runstate{types.RunstateRunning},
		Requested: types.RunstateSuspended,
		Target:    types.RunstateSuspended,
		Batchable: true,
	},
	{
		Command:   "resume",
		Sources:   []types.Runstate{types.RunstateSuspended},
		Requested: types.RunstateRunning,
		Target:    types.RunstateRunning,
		Batchable: true,
	},
	{
		Command:   "stop",
		Sources:   []types.Runstate{types.RunstateRunning},
		Requested: types.RunstateStopped,
		Target:    types.RunstateStopped,
		Batchable: true,
	},
	{
		Command:   "halt",
		Sources:   []types.Runstate{types.RunstateSuspended, types.RunstateRunning},
		Requested: types.RunstateHalted,
		Target:    types.RunstateStopped,
		Batchable: true,
	},
	{
		// restarts always go one VM at a time.
		Command:   "restart",
		Sources:   []types.Runstate{types.RunstateRunning},
		Requested: types.RunstateRestarted,
		Target:    types.RunstateRunning,
	},
}

// Lookup returns the rule for command, matched case-insensitively.
func Lookup(command string) (Rule, error) {
	name := strings.ToLower(strings.TrimSpace(command))
	for _, r := range table {
		if r.Command == name {
			r.Sources = slices.Clone(r.Sources)
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w %q (valid: %s)", ErrUnknownCommand, command, strings.Join(Commands(), ", "))
}

// Commands returns the recognized command names in table order.
func Commands() []string {
	names := make([]string, 0, len(table))
	for _, r := range table {
		names = append(names, r.Command)
	}
	return names
}
