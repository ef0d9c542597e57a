package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least need
// bytes free. A zero need always passes.
func CheckFreeSpace(name, path string, need uint64) Result {
	if need == 0 {
		return Result{Name: name, Passed: true, Detail: "nothing to write"}
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: usage: %v)", path, err)}
	}
	if usage.Free < need {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s free, %s needed)",
			path, humanize.IBytes(usage.Free), humanize.IBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free, %s needed)",
		path, humanize.IBytes(usage.Free), humanize.IBytes(need))}
}

// existingAncestor returns the nearest directory at or above path that
// exists, since the output directory itself is created on demand.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
