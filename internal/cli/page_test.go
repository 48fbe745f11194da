package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/nandsim/internal/cli"
)

func newDeviceCLI(t *testing.T) *cli.CLI {
	t.Helper()

	c := cli.NewCLI(t)
	c.WriteInfo(cli.SmallInfo())

	return c
}

func Test_Read_Returns_Written_Data_When_Device_Reopened(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("write", "5")
	cli.AssertContains(t, stdout, "row=5 block=1 bytes=256 outcome=ok")

	stdout = c.MustRun("read", "5", "--len", "8")
	cli.AssertContains(t, stdout, "row=5 block=1 col=0 outcome=ok")
	cli.AssertContains(t, stdout, "05 05 05 05 05 05 05 05")
}

func Test_Read_Returns_Erased_Pattern_When_Page_Unprogrammed(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("read", "9", "--len", "4", "--oob")
	cli.AssertContains(t, stdout, "ff ff ff ff")
	cli.AssertContains(t, stdout, "oob:")
}

func Test_Write_Fails_When_Page_Already_Programmed(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)
	c.MustRun("write", "6", "--fill", "0x11")

	stderr := c.MustFail("write", "6", "--fill", "0x22")
	cli.AssertContains(t, stderr, "error:")

	// The first program survives.
	stdout := c.MustRun("read", "6", "--len", "2")
	cli.AssertContains(t, stdout, "11 11")
}

func Test_Write_Places_Data_At_Column_When_Col_Given(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)
	c.MustRun("write", "2", "--col", "4", "--fill", "0xab")

	stdout := c.MustRun("read", "2", "--len", "8")
	cli.AssertContains(t, stdout, "ff ff ff ff ab ab ab ab")
}

func Test_Write_Reads_Data_From_Stdin_When_Flag_Set(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	_, stderr, code := c.RunWithInput("hello", "write", "3", "--stdin")
	if code != 0 {
		t.Fatalf("write failed: %s", stderr)
	}

	stdout := c.MustRun("read", "3", "--len", "6")
	cli.AssertContains(t, stdout, "|hello.|")
}

func Test_Erase_Allows_Reprogram_When_Block_Erased(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)
	c.MustRun("write", "4", "--fill", "0x01")

	stdout := c.MustRun("erase", "5")
	cli.AssertContains(t, stdout, "block=1 outcome=ok")

	stdout = c.MustRun("read", "4", "--len", "2")
	cli.AssertContains(t, stdout, "ff ff")

	c.MustRun("write", "4", "--fill", "0x02")

	stdout = c.MustRun("read", "4", "--len", "2")
	cli.AssertContains(t, stdout, "02 02")
}

func Test_Check_Reports_Bad_When_Block_Marked(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	stdout := c.MustRun("check", "8")
	cli.AssertContains(t, stdout, "block=2 outcome=ok")

	stdout = c.MustRun("mark-bad", "9")
	cli.AssertContains(t, stdout, "block=2 marked bad")

	stdout = c.MustRun("check", "8")
	cli.AssertContains(t, stdout, "block=2 outcome=bad")

	// Marking again is a no-op.
	c.MustRun("mark-bad", "8")

	stderr := c.MustFail("erase", "8")
	cli.AssertContains(t, stderr, "bad block")

	stdout = c.MustRun("info", "--blocks")
	cli.AssertContains(t, stdout, "\n2 1 0 bad\n")
}

func Test_Read_Warns_When_Bit_Errors_Correctable(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	info := cli.SmallInfo()
	info.TemperatureC = 70
	c.WriteInfo(info)

	// 48 erases at high temperature put the first read at 53 bit errors,
	// just below the ECC limit of 60.
	script := strings.Repeat("erase 0\n", 48) + "write 0\n"

	_, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("shell failed: %s", stderr)
	}

	stdout, stderr, code := c.Run("read", "0", "--len", "2")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\nstderr: %s", code, stderr)
	}

	cli.AssertContains(t, stdout, "outcome=bitflip")
	cli.AssertContains(t, stderr, "warning: row 0 has correctable bit errors")

	// The second read is uncorrectable.
	stderr = c.MustFail("read", "0")
	cli.AssertContains(t, stderr, "uncorrectable")
}

func Test_Row_Commands_Fail_When_Row_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing row", []string{"read"}, "expected exactly one <row>"},
		{"not a number", []string{"erase", "abc"}, "invalid arguments"},
		{"past the end", []string{"read", "40"}, "out of range"},
		{"bad fill", []string{"write", "1", "--fill", "0x100"}, "fill byte"},
		{"column past page", []string{"read", "1", "--col", "300"}, "column 300"},
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
