package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/projecteru2/envdo/types"
)

func newTestConsole() (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	fixed := time.Date(2024, 5, 1, 9, 4, 5, 0, time.Local)
	c.now = func() time.Time { return fixed }
	return c, &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestVMLine_FixedWidth(t *testing.T) {
	c, buf := newTestConsole()
	c.VM(&types.VM{ID: "12345", Name: "web", Runstate: types.RunstateRunning})

	got := lines(buf)[0]
	want := "\t" + "09:04:05" + strings.Repeat(" ", 10) +
		"12345" + strings.Repeat(" ", 7) +
		"web" + strings.Repeat(" ", 47) +
		strings.Repeat(" ", 8) + "running"
	if got != want {
		t.Errorf("unexpected line\n got: %q\nwant: %q", got, want)
	}
}

func TestVMLine_TruncatesLongName(t *testing.T) {
	c, buf := newTestConsole()
	c.VM(&types.VM{ID: "1", Name: strings.Repeat("x", 80), Runstate: types.RunstateStopped})

	got := lines(buf)[0]
	if strings.Contains(got, strings.Repeat("x", 51)) {
		t.Errorf("expected name cut to 50 characters: %q", got)
	}
	if len(got) != 1+18+12+50+15 {
		t.Errorf("expected fixed line length, got %d", len(got))
	}
}

func TestEnvironment_HeaderTableSeparator(t *testing.T) {
	c, buf := newTestConsole()
	c.Environment(&types.Environment{
		ID:   "77",
		Name: "lab",
		VMs: []types.VM{
			{ID: "1", Name: "a", Runstate: types.RunstateRunning},
			{ID: "2", Name: "b", Runstate: types.RunstateSuspended},
		},
	})

	got := lines(buf)
	if len(got) != 4 {
		t.Fatalf("expected 4 lines, got %q", got)
	}
	if !strings.Contains(got[0], "77 - lab:") {
		t.Errorf("unexpected header %q", got[0])
	}
	if !strings.HasSuffix(got[1], "running") || !strings.HasSuffix(got[2], "suspended") {
		t.Errorf("VM lines out of order: %q", got[1:3])
	}
	if got[3] != separator {
		t.Errorf("expected separator, got %q", got[3])
	}
}

func TestChange(t *testing.T) {
	c, buf := newTestConsole()
	c.Change(&types.VM{ID: "9", Name: "db", Runstate: types.RunstateRunning}, types.RunstateRestarted)

	got := lines(buf)
	if len(got) != 2 || got[0] != "Attempting to set VM 9 to runstate: restarted" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestOutcomeMessages(t *testing.T) {
	c, buf := newTestConsole()
	c.Converged("9", types.RunstateStopped)
	c.Failed("8", types.RunstateStopped)
	c.Warn("not all VMs set as requested, retrying individually")
	c.BatchChange("3", []string{"1", "2"}, types.RunstateHalted)

	out := buf.String()
	for _, want := range []string{
		"VM 9 is in runstate stopped. Have a nice day.",
		"ERROR setting 8 to runstate=stopped",
		"not all VMs set as requested, retrying individually",
		"Attempting to set VMs 1, 2 in environment 3 to runstate: halted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
