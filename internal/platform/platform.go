package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// cached detection result
var detectedPlatform Platform
var detectionDone bool

// Detect returns the current platform, caching the result
func Detect() Platform {
	if detectionDone {
		return detectedPlatform
	}

	detectedPlatform = detectPlatform()
	detectionDone = true
	return detectedPlatform
}

// detectPlatform performs the actual platform detection
func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		// Could be native Linux or WSL - check further
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

// detectLinuxOrWSL distinguishes between native Linux and WSL (1 or 2)
func detectLinuxOrWSL() Platform {
	// Quick check: WSL_DISTRO_NAME is set in WSL environments
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return detectWSLVersion()
	}

	// Fallback: Check /proc/version for WSL signatures
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return PlatformLinux // Can't read, assume native Linux
	}

	versionStr := string(procVersion)

	if strings.Contains(versionStr, "microsoft") || strings.Contains(versionStr, "Microsoft") {
		return detectWSLVersion()
	}

	return PlatformLinux
}

// detectWSLVersion distinguishes between WSL1 and WSL2
func detectWSLVersion() Platform {
	// WSL2 has "microsoft-standard" in /proc/version, WSL1 has "Microsoft"
	// (capital M) without "standard"
	procVersion, err := os.ReadFile("/proc/version")
	if err == nil {
		versionStr := string(procVersion)

		if strings.Contains(versionStr, "microsoft-standard") {
			return PlatformWSL2
		}

		if strings.Contains(versionStr, "Microsoft") {
			return PlatformWSL1
		}
	}

	// /run/WSL and /dev/vsock exist only under WSL2's VM
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return PlatformWSL2
	}

	// Default to WSL1 if we detected WSL but can't determine version
	// (safer to assume WSL1 since it has more limitations)
	return PlatformWSL1
}

// IsWSL returns true if running in any WSL environment
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// ProfileRoots returns candidate Firefox profile root directories for the
// current platform, most likely first. Candidates are not checked for
// existence; callers scan them in order.
func ProfileRoots() []string {
	return profileRootsFor(Detect(), homeDir())
}

// profileRootsFor is the testable core of ProfileRoots.
func profileRootsFor(p Platform, home string) []string {
	switch p {
	case PlatformMacOS:
		return []string{
			filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles"),
		}
	case PlatformWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return []string{filepath.Join(appData, "Mozilla", "Firefox", "Profiles")}
		}
		return []string{filepath.Join(home, "AppData", "Roaming", "Mozilla", "Firefox", "Profiles")}
	default:
		// Linux and WSL: plain install, then snap, then flatpak
		return []string{
			filepath.Join(home, ".mozilla", "firefox"),
			filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox"),
			filepath.Join(home, ".var", "app", "org.mozilla.firefox", ".mozilla", "firefox"),
		}
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// CheckFsnotifySupport checks if a path's filesystem supports fsnotify events
// reliably. Returns a warning message if on a problematic filesystem (9p, nfs,
// cifs, sshfs), or an empty string if fsnotify should work normally. Helps
// users understand why the index does not pick up browser changes on its own.
func CheckFsnotifySupport(path string) string {
	// Only relevant on Linux (WSL2 uses 9p for Windows filesystem access)
	if runtime.GOOS != "linux" {
		return ""
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return "" // Can't read mounts, assume OK
	}

	// Parse /proc/mounts to find filesystem type for the path
	// Format: device mountpoint fstype options ...
	// We need the longest matching mountpoint for our path
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint := fields[1]
		fsType := fields[2]

		if strings.HasPrefix(absPath, mountPoint) {
			if len(mountPoint) > len(matchedMount) {
				matchedMount = mountPoint
				matchedFsType = fsType
			}
		}
	}

	if matchedFsType == "" {
		return ""
	}

	switch {
	case matchedFsType == "9p":
		return "Profile on 9p mount (WSL2 Windows filesystem): change detection disabled. Use ctrl+r to refresh."
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "Profile on NFS mount: change detection may be unreliable. Use ctrl+r to refresh."
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "Profile on CIFS/SMB mount: change detection may be unreliable. Use ctrl+r to refresh."
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "Profile on SSHFS mount: change detection disabled. Use ctrl+r to refresh."
	}

	return ""
}
