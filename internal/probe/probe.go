// Package probe extracts video metadata by shelling out to ffprobe, the
// way the pack's video-ingest references (e.g. hbomb79/Thea's processor
// config, which carries an ffprobe_binary path) treat the decoder as an
// external black-box rather than a linked library. No example repo in the
// corpus links an ffmpeg/ffprobe Go binding, so this is the one component
// that talks to an external process instead of an imported package.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Metadata is the subset of ffprobe's output Fennec persists on a File row.
type Metadata struct {
	DurationSeconds float64
	Width           int
	Height          int
	FrameRate       float64
	Codec           string
	AudioTracks     int
	PixelFormat     string
	ColorSpace      string
	ColorTransfer   string
	ColorPrimaries  string
}

// Prober runs ffprobe against a file path.
type Prober struct {
	BinaryPath string
}

// New returns a Prober using the given ffprobe binary path, defaulting to
// "ffprobe" on $PATH when empty.
func New(binaryPath string) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &Prober{BinaryPath: binaryPath}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	RFrameRate     string `json:"r_frame_rate"`
	PixFmt         string `json:"pix_fmt"`
	ColorSpace     string `json:"color_space"`
	ColorTransfer  string `json:"color_transfer"`
	ColorPrimaries string `json:"color_primaries"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe -show_streams -show_format against path and parses
// the JSON result into Metadata. An error here is a KindUnreadableMedia
// candidate at the caller's discretion; Probe itself only reports what
// ffprobe told it.
func (p *Prober) Probe(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, p.BinaryPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	var md Metadata
	md.DurationSeconds, _ = strconv.ParseFloat(parsed.Format.Duration, 64)

	for _, st := range parsed.Streams {
		switch st.CodecType {
		case "video":
			if md.Width == 0 {
				md.Width = st.Width
				md.Height = st.Height
				md.Codec = st.CodecName
				md.PixelFormat = st.PixFmt
				md.ColorSpace = st.ColorSpace
				md.ColorTransfer = st.ColorTransfer
				md.ColorPrimaries = st.ColorPrimaries
				md.FrameRate = parseRational(st.RFrameRate)
			}
		case "audio":
			md.AudioTracks++
		}
	}
	return md, nil
}

func parseRational(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, errN := strconv.ParseFloat(parts[0], 64)
	den, errD := strconv.ParseFloat(parts[1], 64)
	if errN != nil || errD != nil || den == 0 {
		return 0
	}
	return num / den
}
