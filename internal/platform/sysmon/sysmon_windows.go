//go:build windows

package sysmon

import (
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// Snapshot holds filesystem capacity metrics at a point in time.
type Snapshot struct {
	FreeDiskBytes uint64
}

// Capture takes a snapshot of the free space on the volume holding dir.
func Capture(dir string) Snapshot {
	var snap Snapshot

	path, err := syscall.UTF16PtrFromString(dir)
	if err != nil {
		return snap
	}

	var freeToCaller, total, free uint64
	ret, _, _ := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(path)),
		uintptr(unsafe.Pointer(&freeToCaller)),
		uintptr(unsafe.Pointer(&total)),
		uintptr(unsafe.Pointer(&free)),
	)
	if ret != 0 {
		snap.FreeDiskBytes = freeToCaller
	}

	return snap
}
