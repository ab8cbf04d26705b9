package platform

import (
	"fmt"
	"os/exec"
)

// OpenURL opens a URL in the platform default handler (usually the browser).
// The URL is passed as a single argv element, never through a shell.
func OpenURL(url string) error {
	if url == "" {
		return fmt.Errorf("platform: no URL to open")
	}

	name, args := openCommand(Detect(), url)
	if name == "" {
		return fmt.Errorf("platform: no URL opener for %s", Detect())
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("platform: open %q via %s: %w", url, name, err)
	}
	return nil
}

// openCommand picks the opener command for a platform.
func openCommand(p Platform, url string) (string, []string) {
	switch p {
	case PlatformMacOS:
		return "open", []string{url}

	case PlatformWindows:
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}

	case PlatformWSL1, PlatformWSL2:
		// wslview (from wslu) knows how to reach the Windows default
		// browser; rundll32.exe works from inside WSL as well.
		if path, err := exec.LookPath("wslview"); err == nil {
			return path, []string{url}
		}
		return "rundll32.exe", []string{"url.dll,FileProtocolHandler", url}

	case PlatformLinux:
		return "xdg-open", []string{url}

	default:
		return "", nil
	}
}
