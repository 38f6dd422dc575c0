package sandbox

import (
	"context"
	"strings"
	"testing"
)

func TestExecCommandWithAddressSpaceLimitUnlimitedRunsDirectly(t *testing.T) {
	cmd := execCommandWithAddressSpaceLimit(context.Background(), "/tmp/solution", 0)
	if cmd.Path == "/bin/sh" {
		t.Fatalf("expected no shell wrapper when memoryLimitBytes is 0")
	}
	if !strings.HasSuffix(cmd.Path, "solution") {
		t.Fatalf("expected the command to exec the binary directly, got %q", cmd.Path)
	}
}

func TestExecCommandWithAddressSpaceLimitWrapsInShell(t *testing.T) {
	cmd := execCommandWithAddressSpaceLimit(context.Background(), "/tmp/solution", 256*1024*1024)
	if cmd.Path != "/bin/sh" {
		t.Fatalf("expected a shell wrapper, got %q", cmd.Path)
	}
	if len(cmd.Args) != 4 || cmd.Args[len(cmd.Args)-1] != "/tmp/solution" {
		t.Fatalf("expected the real binary to be passed as $0, got %v", cmd.Args)
	}
	if !strings.Contains(cmd.Args[2], "ulimit -v 262144") {
		t.Fatalf("expected ulimit in KiB, got %q", cmd.Args[2])
	}
}

func TestExecCommandWithAddressSpaceLimitRoundsUpSubKilobyteLimits(t *testing.T) {
	cmd := execCommandWithAddressSpaceLimit(context.Background(), "/tmp/solution", 500)
	if !strings.Contains(cmd.Args[2], "ulimit -v 1") {
		t.Fatalf("expected a sub-kilobyte limit to round up to 1 KiB, got %q", cmd.Args[2])
	}
}
