package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// killTree kills pid and all of its descendants, children first.
func killTree(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return killProcess(ctx, p)
}

func killProcess(ctx context.Context, p *process.Process) error {
	var errs []error

	children, err := p.ChildrenWithContext(ctx)
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		errs = append(errs, err)
	}
	for _, child := range children {
		if err := killProcess(ctx, child); err != nil {
			errs = append(errs, err)
		}
	}

	if err := p.KillWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return errors.Join(errs...)
		}
		errs = append(errs, fmt.Errorf("kill %d: %w", p.Pid, err))
	}
	return errors.Join(errs...)
}
