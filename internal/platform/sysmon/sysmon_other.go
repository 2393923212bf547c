//go:build !windows

package sysmon

import "golang.org/x/sys/unix"

// Snapshot holds filesystem capacity metrics at a point in time.
type Snapshot struct {
	FreeDiskBytes uint64
}

// Capture takes a snapshot of the free space on the volume holding dir.
func Capture(dir string) Snapshot {
	var snap Snapshot

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err == nil {
		snap.FreeDiskBytes = stat.Bavail * uint64(stat.Bsize)
	}

	return snap
}
