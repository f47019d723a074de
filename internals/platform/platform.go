// Package platform resolves the host's arch/ABI cache tags and the
// default nodestash directories.
package platform

import (
	"os"
	"path/filepath"
	"runtime"

	homedir "github.com/mitchellh/go-homedir"
)

// DefaultABI is the ABI tag assumed when none is configured.
// Packages with native components built for one ABI tag are not
// reusable under another, so the tag is part of every cache key.
const DefaultABI = "node-v115"

// Info describes the platform a run targets. It ends up in the
// RunResult so callers can tell what a working set was built for.
type Info struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
	ABI  string `json:"abi"`
}

// Arch returns the arch tag for the current machine. Tags follow the
// node naming scheme rather than Go's.
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	default:
		return runtime.GOARCH
	}
}

// ABI returns the configured ABI tag, falling back to DefaultABI
func ABI() string {
	if abi := os.Getenv("NODESTASH_ABI"); abi != "" {
		return abi
	}
	return DefaultABI
}

// Detect returns the Info for the current machine with the given
// overrides applied (empty override = detected value)
func Detect(archOverride string, abiOverride string) Info {
	info := Info{
		OS:   runtime.GOOS,
		Arch: Arch(),
		ABI:  ABI(),
	}
	if archOverride != "" {
		info.Arch = archOverride
	}
	if abiOverride != "" {
		info.ABI = abiOverride
	}
	return info
}

// GlobalDir returns the nodestash home directory ($HOME/.nodestash)
func GlobalDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".nodestash"), nil
}

// DefaultCacheRoot returns the default package cache location
func DefaultCacheRoot() (string, error) {
	global, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, "cache-v1"), nil
}
