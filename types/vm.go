package types

// Runstate represents the lifecycle state of a VM as reported by the cloud API.
type Runstate string

const (
	RunstateRunning   Runstate = "running"
	RunstateStopped   Runstate = "stopped"
	RunstateSuspended Runstate = "suspended"
	RunstateHalted    Runstate = "halted"    // request-only: converges on stopped
	RunstateRestarted Runstate = "restarted" // request-only: converges on running
	RunstateBusy      Runstate = "busy"      // transient, observed mid-transition only
)

// VM is a transient snapshot of a remote VM. The remote service owns the record.
type VM struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Runstate Runstate `json:"runstate"`
}

// Environment is a named collection of VMs, called a configuration by the API.
type Environment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// VMs keep the order the server returned them in.
	VMs []VM `json:"vms"`
}

// VMIDs returns the ids of vms in order.
func VMIDs(vms []VM) []string {
	ids := make([]string, 0, len(vms))
	for _, vm := range vms {
		ids = append(ids, vm.ID)
	}
	return ids
}
