// Copyright 2025 The racedetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.24 && !go1.26 && (amd64 || arm64)

package engine

import "unsafe"

// getg returns the current goroutine's g struct pointer.
// Implemented in goid_amd64.s and goid_arm64.s.
//
//go:noescape
func getg() uintptr

// goroutineIDFast reads the goid field of the runtime g struct at
// goidOffset.
//
//go:nosplit
//go:nocheckptr
func goroutineIDFast() int64 {
	gptr := getg()
	if gptr == 0 {
		return 0
	}

	//nolint:gosec // G103: reads a field of the pinned runtime g struct
	goid := *(*uint64)(unsafe.Pointer(gptr + goidOffset))

	//nolint:gosec // G115: goroutine ids never exceed int64 max
	return int64(goid)
}
