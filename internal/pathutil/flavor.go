// Package pathutil compares and rebases absolute paths under an explicit
// path flavor, so Windows-style references can be handled on any host.
package pathutil

import (
	"path"
	"runtime"
	"strings"
)

// Flavor describes how paths are spelled on a target platform.
type Flavor struct {
	Sep             byte
	ListSep         byte
	CaseInsensitive bool
}

var (
	// Windows uses backslashes, ';'-joined search lists and case-insensitive names.
	Windows = Flavor{Sep: '\\', ListSep: ';', CaseInsensitive: true}
	// Unix uses forward slashes and ':'-joined search lists.
	Unix = Flavor{Sep: '/', ListSep: ':'}
)

// Native returns the flavor of the running host.
func Native() Flavor {
	if runtime.GOOS == "windows" {
		return Windows
	}
	if runtime.GOOS == "darwin" {
		return Flavor{Sep: '/', ListSep: ':', CaseInsensitive: true}
	}
	return Unix
}

// IsWindows reports whether the flavor uses drive letters and backslashes.
func (f Flavor) IsWindows() bool {
	return f.Sep == '\\'
}

// Clean normalizes separators and resolves "." and ".." elements.
func (f Flavor) Clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !f.IsWindows() {
		return path.Clean(p)
	}

	s := strings.ReplaceAll(p, `\`, "/")
	vol := ""
	if len(s) >= 2 && s[1] == ':' {
		vol, s = s[:2], s[2:]
	}
	unc := vol == "" && strings.HasPrefix(s, "//")
	c := "/"
	if s != "" {
		c = path.Clean(s)
	}
	if unc {
		c = "/" + c
	}
	return strings.ReplaceAll(vol+c, "/", `\`)
}

// Volume returns the drive or UNC share prefix of p, or "" on unix flavors.
func (f Flavor) Volume(p string) string {
	if !f.IsWindows() {
		return ""
	}
	c := f.Clean(p)
	if len(c) >= 2 && c[1] == ':' {
		return c[:2]
	}
	if strings.HasPrefix(c, `\\`) {
		parts := strings.SplitN(c[2:], `\`, 3)
		if len(parts) >= 2 {
			return `\\` + parts[0] + `\` + parts[1]
		}
		return c
	}
	return ""
}

// IsRoot reports whether p names a filesystem, drive or share root.
func (f Flavor) IsRoot(p string) bool {
	c := f.Clean(p)
	if c == "" {
		return false
	}
	if !f.IsWindows() {
		return c == "/"
	}
	vol := f.Volume(c)
	rest := strings.TrimPrefix(c, vol)
	return rest == "" || rest == `\`
}

// Equal reports whether a and b name the same path.
func (f Flavor) Equal(a, b string) bool {
	return f.fold(f.Clean(a)) == f.fold(f.Clean(b))
}

// Within reports whether child equals parent or sits below it. The returned
// rest is the part of child below parent ("" when equal), spelled as in child.
func (f Flavor) Within(child, parent string) (rest string, ok bool) {
	c, p := f.Clean(child), f.Clean(parent)
	if c == "" || p == "" {
		return "", false
	}
	if f.fold(c) == f.fold(p) {
		return "", true
	}
	prefix := p
	if prefix[len(prefix)-1] != f.Sep {
		prefix += string(f.Sep)
	}
	if len(c) <= len(prefix) || f.fold(c[:len(prefix)]) != f.fold(prefix) {
		return "", false
	}
	return c[len(prefix):], true
}

// Join appends elem to base using the flavor separator.
func (f Flavor) Join(base string, elem ...string) string {
	out := base
	for _, e := range elem {
		if e == "" {
			continue
		}
		if out != "" && out[len(out)-1] != f.Sep {
			out += string(f.Sep)
		}
		out += e
	}
	return f.Clean(out)
}

// Rebase moves p from under oldPrefix to under newPrefix. ok is false when p
// is not at or below oldPrefix.
func (f Flavor) Rebase(p, oldPrefix, newPrefix string) (string, bool) {
	rest, ok := f.Within(p, oldPrefix)
	if !ok {
		return "", false
	}
	if rest == "" {
		return f.Clean(newPrefix), true
	}
	return f.Join(newPrefix, rest), true
}

// SplitList splits a search-path value. Empty entries are kept so that
// joining the result reproduces the input.
func (f Flavor) SplitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, string(f.ListSep))
}

// JoinList is the inverse of SplitList.
func (f Flavor) JoinList(entries []string) string {
	return strings.Join(entries, string(f.ListSep))
}

func (f Flavor) fold(s string) string {
	if f.CaseInsensitive {
		return strings.ToLower(s)
	}
	return s
}
