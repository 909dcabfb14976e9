package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg reports the FFmpeg binary a local render command will most
// likely execute: one installed next to the command (common for bundled
// renderers) wins over PATH. FFmpeg is optional because some renderers ship
// their own encoder.
func ResolveFFmpeg(renderCommand string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Used by local render commands to encode video",
		Optional:    true,
	}

	if binary := strings.TrimSpace(renderCommand); binary != "" {
		if resolved, err := exec.LookPath(binary); err == nil {
			candidate := siblingFFmpeg(resolved)
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Path = candidate
				result.Available = true
				return result
			}
		}
	}

	name := "ffmpeg"
	if path, err := exec.LookPath(name); err == nil {
		result.Command = path
		result.Path = path
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func siblingFFmpeg(commandPath string) string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(commandPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
