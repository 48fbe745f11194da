package cli_test

import (
	"testing"

	"github.com/calvinalkan/nandsim/internal/cli"
)

func Test_Exec_Runs_Batch_When_Entries_Valid(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("exec", "--fill", "0xab", "--dump", "4",
		"erase", "4:erase-2nd", "program", "4:program-2nd", "read", "4:0x30")

	cli.AssertContains(t, stdout, "reads=1 programs=1 erases=1 admin=0 skipped=0 max_bit_errors=0")
	cli.AssertContains(t, stdout, "ab ab ab ab")

	log := c.ReadFile("commandq.log")
	cli.AssertContains(t, log, "  ffffffff 60\n  00000004 d0\n  ffffffff 80\n  00000004 10\n  ffffffff 00\n  00000004 30\n")
}

func Test_Exec_Runs_Admin_Codes_When_No_Row_Given(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("exec", "--dump", "6", "read-id")
	cli.AssertContains(t, stdout, "admin=1")
	cli.AssertContains(t, stdout, "cc cc cc cc cc cc")
}

func Test_Exec_Skips_Unknown_Codes_When_Batch_Has_Them(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("exec", "0x42", "erase", "0:erase-2nd")
	cli.AssertContains(t, stdout, "erases=1 admin=0 skipped=1")
}

func Test_Exec_Fails_When_Batch_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no entries", []string{"exec"}, "expected at least one"},
		{"unknown name", []string{"exec", "bogus"}, "unknown command"},
		{"bad row", []string{"exec", "x:read-2nd"}, "row \"x\""},
		{"unpaired second cycle", []string{"exec", "3:read-2nd"}, "invalid command sequence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newDeviceCLI(t)
			stderr := c.MustFail(tt.args...)
			cli.AssertContains(t, stderr, tt.want)
		})
	}
}
