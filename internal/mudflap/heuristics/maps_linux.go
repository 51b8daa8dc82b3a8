//go:build linux

package heuristics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// SelfMaps reads /proc/self/maps.
func SelfMaps() ([]Region, error) {
	p, err := procfs.Self()
	if err != nil {
		return nil, errors.Wrap(err, "open /proc/self")
	}
	maps, err := p.ProcMaps()
	if err != nil {
		return nil, errors.Wrap(err, "read /proc/self/maps")
	}

	regions := make([]Region, 0, len(maps))
	for _, m := range maps {
		if m.EndAddr <= m.StartAddr {
			continue
		}
		regions = append(regions, Region{
			Low:   m.StartAddr,
			High:  m.EndAddr - 1,
			Perms: perms(m.Perms),
			Path:  m.Pathname,
		})
	}
	return regions, nil
}

func perms(p *procfs.ProcMapPermissions) string {
	if p == nil {
		return "----"
	}
	b := []byte("----")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	switch {
	case p.Shared:
		b[3] = 's'
	case p.Private:
		b[3] = 'p'
	}
	return string(b)
}
