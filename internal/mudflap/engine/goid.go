// Copyright 2025 The racedetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import "runtime"

// fastGID reports whether goroutineIDFast agrees with the runtime.Stack
// header on this build. It is false when the g layout assumed by the fast
// path does not match, in which case every lookup parses the stack.
var fastGID = goroutineIDFast() == goroutineIDSlow()

// goroutineID returns the id of the calling goroutine, or 0 if it cannot
// be determined.
//
// Supported builds (Go 1.24-1.25 on amd64/arm64) read the goid field of the
// runtime g struct directly in about a nanosecond; all others parse the
// header line of runtime.Stack, which costs microseconds.
func goroutineID() int64 {
	if fastGID {
		return goroutineIDFast()
	}
	return goroutineIDSlow()
}

// goroutineIDSlow parses the goroutine id from runtime.Stack
// ("goroutine 123 [running]:").
func goroutineIDSlow() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine id from stack trace bytes, or returns 0
// if the format is not recognized.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "

	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
