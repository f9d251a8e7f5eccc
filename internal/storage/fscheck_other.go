//go:build !darwin && !linux && !windows

package storage

func detectFilesystemType(string) (string, error) {
	return "", errDetectUnsupported
}
