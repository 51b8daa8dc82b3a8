package mudflap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		required string
		want     bool
	}{
		{"0.1.0", true},
		{"v0.1", true},
		{"v0.0.9", true},
		{"0.2.0", false},
		{"v1.0.0", false},
		{"latest", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.required, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.required))
		})
	}
}

func TestGetInfo(t *testing.T) {
	if err := Configure("-mode-populate"); err != nil {
		t.Fatal(err)
	}
	defer Disable()

	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.True(t, info.Enabled)
	assert.Contains(t, info.Options, "-mode-populate")
}
