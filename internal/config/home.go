package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

type homeKey struct{}

// WithHome returns ctx carrying the resolved home directory.
func WithHome(ctx context.Context, home string) context.Context {
	return context.WithValue(ctx, homeKey{}, home)
}

// HomeFrom returns the home directory stored by WithHome.
func HomeFrom(ctx context.Context) (string, bool) {
	home, ok := ctx.Value(homeKey{}).(string)
	return home, ok && home != ""
}

// MustHomeFrom is HomeFrom for commands that run after the root resolved the home.
func MustHomeFrom(ctx context.Context) string {
	home, ok := HomeFrom(ctx)
	if !ok {
		panic("config: home missing from context")
	}
	return home
}

// ResolveHome picks the home directory: override, then VEXUM_HOME, then ~/.vexum. A
// leading "~/" is expanded.
func ResolveHome(override string) (string, error) {
	dir := override
	if dir == "" {
		dir = os.Getenv("VEXUM_HOME")
	}
	userHome, err := os.UserHomeDir()
	if dir == "" || dir == "~" || strings.HasPrefix(dir, "~/") {
		if err != nil {
			return "", errors.New("config: cannot determine user home directory; set VEXUM_HOME")
		}
		switch {
		case dir == "":
			dir = filepath.Join(userHome, ".vexum")
		default:
			dir = filepath.Join(userHome, strings.TrimPrefix(dir, "~"))
		}
	}
	return filepath.Abs(dir)
}

// ProtectedDir is <home>/protected. It holds the SQLite file, daemon state and backup
// bookkeeping.
func ProtectedDir(home string) string {
	return filepath.Join(home, "protected")
}

// EnsureProtected creates ProtectedDir readable by the owner only.
func EnsureProtected(home string) (string, error) {
	dir := ProtectedDir(home)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
