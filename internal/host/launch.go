package host

import (
	"fmt"
	"os/exec"
	"runtime"
)

// linuxBrowsers are probed in order via the PATH.
var linuxBrowsers = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium-browser",
	"chromium",
}

// LaunchBrowser spawns the platform browser detached. It returns an error
// the manager turns into load-the-extension instructions; it never retries.
func LaunchBrowser() error {
	switch runtime.GOOS {
	case "darwin":
		return startDetached(exec.Command("open", "-a", "Google Chrome"))
	case "windows":
		return startDetached(exec.Command("cmd", "/c", "start", "chrome"))
	default:
		for _, name := range linuxBrowsers {
			path, err := exec.LookPath(name)
			if err != nil {
				continue
			}
			return startDetached(exec.Command(path))
		}
		return fmt.Errorf("no Chrome or Chromium binary found on PATH (tried %v)", linuxBrowsers)
	}
}

func startDetached(cmd *exec.Cmd) error {
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", cmd.Path, err)
	}
	// Detach: the browser outlives the host; we never wait on it.
	go func() { _ = cmd.Wait() }()
	return nil
}
