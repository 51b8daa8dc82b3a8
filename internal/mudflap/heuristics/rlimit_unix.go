//go:build unix

package heuristics

import "golang.org/x/sys/unix"

// stackLimit returns the soft stack size limit. An unlimited or huge limit
// reports false so that the mapping size is used instead.
func stackLimit() (uintptr, bool) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rl); err != nil {
		return 0, false
	}
	if rl.Cur == 0 || rl.Cur >= 1<<62 {
		return 0, false
	}
	return uintptr(rl.Cur), true
}
