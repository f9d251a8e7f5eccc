//go:build !windows && !darwin

package reaper

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func platformDeferredDeleter() DeferredDeleter { return nil }

// platformElevator uses polkit when pkexec is installed.
func platformElevator() Elevator {
	pkexec, err := exec.LookPath("pkexec")
	if err != nil {
		return nil
	}
	return func(ctx context.Context, path string) error {
		out, err := exec.CommandContext(ctx, pkexec, "rm", "-rf", "--", path).CombinedOutput()
		if ctx.Err() != nil {
			return fmt.Errorf("elevated delete timed out: %w", ctx.Err())
		}
		if err != nil {
			return fmt.Errorf("elevated delete: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
