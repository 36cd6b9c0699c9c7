package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// FindRunning looks for another process running the same executable as
// binary. It returns the PID of the first match.
func FindRunning(ctx context.Context, binary string) (int32, bool, error) {
	absBinary, err := filepath.Abs(binary)
	if err != nil {
		return 0, false, fmt.Errorf("resolve binary path: %w", err)
	}
	wantName := strings.TrimSuffix(filepath.Base(absBinary), ".exe")

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list processes: %w", err)
	}

	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if exe, err := p.ExeWithContext(ctx); err == nil && exe != "" {
			if exe == absBinary {
				return p.Pid, true, nil
			}
			continue
		}
		// Exe is unreadable for processes owned by other users; fall back to the name.
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.TrimSuffix(name, ".exe") == wantName {
			return p.Pid, true, nil
		}
	}
	return 0, false, nil
}
