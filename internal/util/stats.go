package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide media counter.
var Stats = &stats{}

type stats struct {
	TotalTracks atomic.Int64 // cumulative count of remote tracks since process start
	EndedTracks atomic.Int64 // cumulative count of remote tracks that ended
	PacketsSent atomic.Int64 // RTP packets relayed to local tracks
	PacketsRecv atomic.Int64 // RTP packets read from remote tracks
	BytesSent   atomic.Int64 // payload bytes relayed to local tracks
	BytesRecv   atomic.Int64 // payload bytes read from remote tracks

	FramesCaptured atomic.Int64 // video frames handed to local tracks by a capture device
	BytesCaptured  atomic.Int64 // size of those frames before packetization
}

func (s *stats) AddTrack()    { s.TotalTracks.Add(1) }
func (s *stats) RemoveTrack() { s.EndedTracks.Add(1) }

func (s *stats) AddSent(n int) {
	s.PacketsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddCaptured(n int) {
	s.FramesCaptured.Add(1)
	s.BytesCaptured.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.PacketsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs media statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prevSent, prevRecv, prevTotal, prevEnded, prevFrames int64
		for {
			select {
			case <-ticker.C:
				total := Stats.TotalTracks.Load()
				ended := Stats.EndedTracks.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				frames := Stats.FramesCaptured.Load()

				outS := float64(sent-prevSent) / reportInterval.Seconds()
				inS := float64(recv-prevRecv) / reportInterval.Seconds()
				fps := float64(frames-prevFrames) / reportInterval.Seconds()
				upT := total - prevTotal
				downT := ended - prevEnded

				if upT > 0 || downT > 0 || inS > 10 || outS > 10 || fps > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, fps, upT, downT))
				}

				prevSent = sent
				prevRecv = recv
				prevTotal = total
				prevEnded = ended
				prevFrames = frames

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS, fps float64, upT, downT int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Capture: %5.1f fps | Tracks: %2d↑ %2d↓",
		formatBytes(inS),
		formatBytes(outS),
		fps,
		upT,
		downT,
	)
}
