//go:build !linux

package heuristics

import "github.com/pkg/errors"

// SelfMaps is only implemented on Linux.
func SelfMaps() ([]Region, error) {
	return nil, errors.New("process mappings are not available on this platform")
}
