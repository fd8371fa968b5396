package stream

import (
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"
)

// ProbeDuration opens a media file and reports its container duration.
// Returns zero when the duration cannot be determined; playback does not
// depend on it, only progress displays do.
func ProbeDuration(path string) time.Duration {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return 0
	}
	defer fc.Free()

	if err := fc.OpenInput(path, nil, nil); err != nil {
		slog.Debug("duration probe open failed", "path", path, "err", err)
		return 0
	}
	defer fc.CloseInput()

	if err := fc.FindStreamInfo(nil); err != nil {
		slog.Debug("duration probe stream info failed", "path", path, "err", err)
		return 0
	}

	// FormatContext duration is in AV_TIME_BASE units (microseconds).
	d := fc.Duration()
	if d <= 0 {
		return 0
	}
	return time.Duration(d) * time.Microsecond
}
