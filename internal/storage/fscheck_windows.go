//go:build windows

package storage

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// detectFilesystemType reports "remote" for mapped network drives and UNC
// shares, and the drive type number otherwise.
func detectFilesystemType(path string) (string, error) {
	vol := filepath.VolumeName(path)
	if vol == "" {
		return "", errDetectUnsupported
	}
	root, err := windows.UTF16PtrFromString(vol + `\`)
	if err != nil {
		return "", fmt.Errorf("encode volume %q: %w", vol, err)
	}
	driveType := windows.GetDriveType(root)
	if driveType == windows.DRIVE_REMOTE {
		return "remote", nil
	}
	return fmt.Sprintf("drive-type-%d", driveType), nil
}
