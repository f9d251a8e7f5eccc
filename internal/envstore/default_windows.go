//go:build windows

package envstore

import "log/slog"

// Default returns the user environment of the host: the registry on Windows.
func Default(_ string, _ []string, logger *slog.Logger) Store {
	return NewRegistry(logger)
}
