//go:build windows

package reaper

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

func platformDeferredDeleter() DeferredDeleter {
	return func(paths []string) error {
		for _, p := range paths {
			from, err := windows.UTF16PtrFromString(p)
			if err != nil {
				return fmt.Errorf("encode %q: %w", p, err)
			}
			if err := windows.MoveFileEx(from, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); err != nil {
				return fmt.Errorf("schedule %s for deletion at restart: %w", p, err)
			}
		}
		return nil
	}
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// platformElevator starts an elevated PowerShell through UAC and waits for
// it to finish the delete.
func platformElevator() Elevator {
	return func(ctx context.Context, path string) error {
		inner := "Remove-Item -LiteralPath " + psQuote(path) + " -Recurse -Force"
		script := "Start-Process powershell -Verb RunAs -Wait -WindowStyle Hidden -ArgumentList " +
			"'-NoProfile','-NonInteractive','-Command'," + psQuote(inner)

		cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
		out, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return fmt.Errorf("elevated delete timed out: %w", ctx.Err())
		}
		if err != nil {
			return fmt.Errorf("elevated delete: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
