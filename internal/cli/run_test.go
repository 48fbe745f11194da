package cli_test

import (
	"bytes"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/calvinalkan/nandsim/internal/cli"
)

func Test_Run_Prints_Usage_When_No_Command(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun()

	cli.AssertContains(t, stdout, "Usage: nandsim [options] <command> [args]")
	cli.AssertContains(t, stdout, "selftest")
	cli.AssertContains(t, stdout, "--cache-handles")
}

func Test_Run_Fails_When_Command_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("bogus")

	cli.AssertContains(t, stderr, "unknown command: bogus")
}

func Test_Run_Fails_When_Global_Flag_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--nope", "info")

	cli.AssertContains(t, stderr, "unknown flag")
}

func Test_Command_Help_Shows_Flags_When_Help_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("read", "--help")

	cli.AssertContains(t, stdout, "Usage: nandsim read <row> [flags]")
	cli.AssertContains(t, stdout, "--oob")
}

func Test_Info_Creates_Default_Device_When_First_Opened(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteInfo(cli.SmallInfo())

	stdout := c.MustRun("info")
	cli.AssertContains(t, stdout, "name=COMMON_NAND")
	cli.AssertContains(t, stdout, "pages_per_block=4")
	cli.AssertContains(t, stdout, "temperature=25 (normal)")
	cli.AssertContains(t, stdout, "bad_blocks=-")

	info := c.ReadFile("NandInfo/COMMON_NAND.ini")
	cli.AssertContains(t, info, "Page_Size(B): 256")
	cli.AssertContains(t, c.ReadFile("commandq.log"), "session")
}

func Test_Info_Lists_Generated_Bad_Blocks_When_Device_Has_Them(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	info := cli.SmallInfo()
	info.BadBlocks = 2
	info.WeakBlocks = 1
	c.WriteInfo(info)

	stdout := c.MustRun("info", "--blocks")
	cli.AssertNotContains(t, stdout, "bad_blocks=-")
	cli.AssertNotContains(t, stdout, "weak_blocks=-")
	cli.AssertContains(t, stdout, "# block pe_cycles reads state")
	cli.AssertContains(t, stdout, " 2000 0 weak")
	cli.AssertContains(t, stdout, " 0 0 ok\n")
}

func Test_Status_Reports_Clear_Register_And_ID_When_Device_Fresh(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteInfo(cli.SmallInfo())

	stdout := c.MustRun("status")
	cli.AssertContains(t, stdout, "status=0x00 (ok)")
	cli.AssertContains(t, stdout, "id=cccccccccccc")
}

func Test_Open_Fails_When_Variant_Not_Implemented(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteInfo(cli.SmallInfo())

	stderr := c.MustFail("--variant", "micron", "info")
	cli.AssertContains(t, stderr, "unsupported variant")
}

func Test_Run_Exits_130_When_Interrupted_During_Selftest(t *testing.T) {
	t.Parallel()

	c := newDeviceCLI(t)

	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGINT

	var out, errOut bytes.Buffer

	args := []string{"nandsim", "--cwd", c.Dir, "selftest", "--rounds", "1000000"}
	code := cli.Run(strings.NewReader(""), &out, &errOut, args, c.Env, sigCh)

	if code != 130 {
		t.Fatalf("exit code = %d, want 130\nstderr: %s", code, errOut.String())
	}

	cli.AssertContains(t, errOut.String(), "error: interrupted: selftest")
	cli.AssertNotContains(t, out.String(), "passed=")
}
