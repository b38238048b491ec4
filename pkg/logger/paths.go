/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformLogPaths returns fallback log paths in order of priority for the platform.
func PlatformLogPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			xdgStatePath("efflux", "vault.log"),
			"./efflux-vault.log",
			"/tmp/efflux/vault.log",
		}
	case "linux":
		return []string{
			"/var/log/efflux/vault.log",           // best if writable (service account)
			xdgStatePath("efflux", "vault.log"),   // user-local fallback (~/.local/state/efflux/vault.log)
			"./efflux-vault.log",                  // current working dir, ideal for devs
			"/tmp/efflux/vault.log",               // ephemeral
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("ProgramData"), "efflux", "vault.log"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "efflux", "vault.log"),
			".\\efflux-vault.log",
		}
	default:
		return []string{"./efflux-vault.log"}
	}
}

// xdgStatePath resolves XDG_STATE_HOME (or ~/.local/state) for the app.
func xdgStatePath(app, file string) string {
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), app, file)
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, app, file)
}
