package cli_test

import (
	"testing"

	"github.com/calvinalkan/nandsim/internal/cli"
)

func Test_Shell_Runs_Commands_When_Lines_Given(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	script := `
write 3
read 3 --len 4
write 3
flush
bogus
status
exit
read 3
`

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr)
	}

	cli.AssertContains(t, stdout, "nandsim shell (device=COMMON_NAND session=")
	cli.AssertContains(t, stdout, "row=3 block=0 bytes=256 outcome=ok")
	cli.AssertContains(t, stdout, "03 03 03 03")
	cli.AssertContains(t, stdout, "flushed")
	cli.AssertContains(t, stdout, "Bye!")

	// The failed re-program leaves the fail bit for the next status read.
	cli.AssertContains(t, stdout, "status=0x01 (fail)")
	cli.AssertContains(t, stderr, "page already programmed")
	cli.AssertContains(t, stderr, "unknown command: bogus")
}

func Test_Shell_Keeps_Flag_Values_Per_Line_When_Command_Repeated(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	script := "write 1 --fill 0x0a\nwrite 2\nread 2 --len 2\n"

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr)
	}

	// Row 2 gets its default fill, not the previous line's.
	cli.AssertContains(t, stdout, "02 02")
}

func Test_Shell_Prints_Help_When_Asked(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout, _, code := c.RunWithInput("help\n", "shell")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	cli.AssertContains(t, stdout, "mark-bad <row>")
	cli.AssertContains(t, stdout, "flush")
	cli.AssertNotContains(t, stdout, "print-config")
}
