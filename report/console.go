package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/projecteru2/envdo/types"
)

const (
	separator = "--------------------------------------------"

	timeWidth  = 18
	idWidth    = 12
	nameWidth  = 50
	stateWidth = 15
)

// Console renders engine events as fixed-width text lines.
// Colours are only emitted when the writer is a terminal.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time

	header lipgloss.Style
	warn   lipgloss.Style
	errs   lipgloss.Style
	ok     lipgloss.Style
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:      w,
		now:    time.Now,
		header: r.NewStyle().Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		errs:   r.NewStyle().Foreground(lipgloss.Color("204")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("76")),
	}
}

// Environment prints the header, one line per VM and a separator.
func (c *Console) Environment(env *types.Environment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.header.Render(fmt.Sprintf("%s - %s:", env.ID, env.Name)))
	for i := range env.VMs {
		c.println(c.vmLine(&env.VMs[i]))
	}
	c.println(separator)
}

func (c *Console) VM(vm *types.VM) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.vmLine(vm))
}

func (c *Console) Change(vm *types.VM, requested types.Runstate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(fmt.Sprintf("Attempting to set VM %s to runstate: %s", vm.ID, requested))
	c.println(c.vmLine(vm))
}

func (c *Console) BatchChange(envID string, vmIDs []string, requested types.Runstate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(fmt.Sprintf("Attempting to set VMs %s in environment %s to runstate: %s",
		strings.Join(vmIDs, ", "), envID, requested))
}

func (c *Console) Converged(vmID string, state types.Runstate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.ok.Render(fmt.Sprintf("VM %s is in runstate %s. Have a nice day.", vmID, state)))
}

func (c *Console) Failed(vmID string, target types.Runstate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.errs.Render(fmt.Sprintf("ERROR setting %s to runstate=%s", vmID, target)))
}

func (c *Console) Warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.warn.Render(msg))
}

// vmLine: tab, local time, id, name (padded or cut to width), right-aligned runstate.
func (c *Console) vmLine(vm *types.VM) string {
	return fmt.Sprintf("\t%-*s%-*s%-*.*s%*s",
		timeWidth, c.now().Local().Format(time.TimeOnly),
		idWidth, vm.ID,
		nameWidth, nameWidth, vm.Name,
		stateWidth, vm.Runstate,
	)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.w, s)
}
