package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytesFixedWidth(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range cases {
		got := formatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestStatsCounters(t *testing.T) {
	before := Stats.PacketsRecv.Load()
	beforeBytes := Stats.BytesRecv.Load()

	Stats.AddRecv(1200)
	Stats.AddRecv(300)

	assert.Equal(t, before+2, Stats.PacketsRecv.Load())
	assert.Equal(t, beforeBytes+1500, Stats.BytesRecv.Load())
}

func TestCapturedFramesCountedApart(t *testing.T) {
	sent := Stats.PacketsSent.Load()
	frames := Stats.FramesCaptured.Load()
	bytes := Stats.BytesCaptured.Load()

	Stats.AddCaptured(4000)

	assert.Equal(t, frames+1, Stats.FramesCaptured.Load())
	assert.Equal(t, bytes+4000, Stats.BytesCaptured.Load())
	assert.Equal(t, sent, Stats.PacketsSent.Load())
}

func TestFormatStats(t *testing.T) {
	got := formatStats(2048, 0, 29.97, 1, 0)
	assert.Equal(t, "In:  2.0 KiB/s | Out:  0.0   B/s | Capture:  30.0 fps | Tracks:  1↑  0↓", got)
}
