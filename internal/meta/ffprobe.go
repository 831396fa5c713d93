package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/util"
)

// FFprobeInfo represents the output from ffprobe
type FFprobeInfo struct {
	Streams []FFprobeStream `json:"streams"`
	Format  *FFprobeFormat  `json:"format"`
}

// IntOrString can unmarshal both integers and strings from JSON
type IntOrString struct {
	Value int
}

// UnmarshalJSON implements custom unmarshaling for IntOrString
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	var intVal int
	if err := json.Unmarshal(data, &intVal); err == nil {
		i.Value = intVal
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err != nil {
		return err
	}

	// "N/A", empty and garbage all mean unknown
	i.Value, _ = strconv.Atoi(strVal)
	return nil
}

// FFprobeStream represents one stream of the container
type FFprobeStream struct {
	Index     int         `json:"index"`
	CodecName string      `json:"codec_name"`
	CodecType string      `json:"codec_type"`
	Width     IntOrString `json:"width"`
	Height    IntOrString `json:"height"`
	BitRate   string      `json:"bit_rate"`
	Duration  string      `json:"duration"`
}

// FFprobeFormat represents container format metadata
type FFprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ErrNoVideoStream is returned when a probed file carries no video stream
var ErrNoVideoStream = errors.New("no video stream")

// RunFFprobe executes ffprobe and parses the JSON output.
// It returns util.ErrNotFound when ffprobe is not installed.
func RunFFprobe(ctx context.Context, path string) (*FFprobeInfo, error) {
	if !CheckFFprobeAvailable() {
		return nil, util.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return ParseFFprobe(output)
}

// ParseFFprobe decodes ffprobe's JSON output
func ParseFFprobe(output []byte) (*FFprobeInfo, error) {
	var info FFprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// VideoMetrics derives video quality signals from probe output.
// Resolution is the height label ("1080p"), bitrate is in kbps and
// duration in seconds. Container values win over stream values.
func (info *FFprobeInfo) VideoMetrics() (metrics.Video, error) {
	var stream *FFprobeStream
	for i := range info.Streams {
		if info.Streams[i].CodecType == "video" {
			stream = &info.Streams[i]
			break
		}
	}
	if stream == nil {
		return metrics.Video{}, ErrNoVideoStream
	}

	v := metrics.Video{}
	if stream.Height.Value > 0 {
		v.Resolution = strconv.Itoa(stream.Height.Value) + "p"
	}

	bitrate, duration := stream.BitRate, stream.Duration
	if info.Format != nil {
		if info.Format.BitRate != "" {
			bitrate = info.Format.BitRate
		}
		if info.Format.Duration != "" {
			duration = info.Format.Duration
		}
	}
	if bps, err := strconv.ParseFloat(bitrate, 64); err == nil && bps > 0 {
		v.Bitrate = bps / 1000
	}
	if secs, err := strconv.ParseFloat(duration, 64); err == nil && secs > 0 {
		v.Duration = secs
	}

	return v, nil
}

// ProbeVideo runs ffprobe on path and returns its video metrics
func ProbeVideo(ctx context.Context, path string) (metrics.Video, error) {
	info, err := RunFFprobe(ctx, path)
	if err != nil {
		return metrics.Video{}, err
	}
	return info.VideoMetrics()
}
