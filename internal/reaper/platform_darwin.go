//go:build darwin

package reaper

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// macOS has no delete-on-restart registry.
func platformDeferredDeleter() DeferredDeleter { return nil }

func platformElevator() Elevator {
	return func(ctx context.Context, path string) error {
		quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(path)
		script := fmt.Sprintf(`do shell script "rm -rf " & quoted form of "%s" with administrator privileges`, quoted)
		out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput()
		if ctx.Err() != nil {
			return fmt.Errorf("elevated delete timed out: %w", ctx.Err())
		}
		if err != nil {
			return fmt.Errorf("elevated delete: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
