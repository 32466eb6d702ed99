package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name        string
		total       int64
		worker, fee int64
	}{
		{"round amount", 100_000, 80_000, 20_000},
		{"typical job", 60_000, 48_000, 12_000},
		{"large", 2_500_000, 2_000_000, 500_000},
		{"truncation", 99, 79, 19},
		{"zero", 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			worker, fee := Split(tc.total)
			assert.Equal(t, tc.worker, worker)
			assert.Equal(t, tc.fee, fee)
			assert.LessOrEqual(t, worker+fee, tc.total, "shares never exceed the total")
		})
	}
}
