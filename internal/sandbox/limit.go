package sandbox

import (
	"context"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// execCommandWithAddressSpaceLimit builds a command that imposes a
// best-effort RLIMIT_AS on the child before it execs the target binary.
// Go's exec.Cmd has no pre-exec hook, so the limit is applied the way a
// shell does it: a thin `sh -c 'ulimit -v …; exec "$0"'` wrapper sets the
// limit on itself and then execs the real program, which inherits it.
// memoryLimitBytes == 0 means unlimited, matching the problem's own
// convention for "no limit".
func execCommandWithAddressSpaceLimit(ctx context.Context, execPath string, memoryLimitBytes uint64) *exec.Cmd {
	if memoryLimitBytes == 0 {
		return exec.CommandContext(ctx, execPath)
	}
	kb := memoryLimitBytes / 1024
	if kb == 0 {
		kb = 1
	}
	script := "ulimit -v " + strconv.FormatUint(kb, 10) + " 2>/dev/null; exec \"$0\""
	return exec.CommandContext(ctx, "/bin/sh", "-c", script, execPath)
}

// setrlimitSelf applies RLIMIT_AS to the current process directly via
// golang.org/x/sys/unix, the same call a shell's ulimit ultimately makes.
// Nothing calls it: execCommandWithAddressSpaceLimit always uses /bin/sh and
// has no path for a missing shell.
func setrlimitSelf(bytes uint64) error {
	return unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: bytes, Max: bytes})
}
