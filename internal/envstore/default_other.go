//go:build !windows

package envstore

import "log/slog"

// Default returns the user environment of the host: a profile file and
// generated shell script outside Windows.
func Default(profilePath string, searchPathVars []string, logger *slog.Logger) Store {
	return NewProfile(profilePath, searchPathVars, logger)
}
