// Package ffmpeg implements the Pipeline's two decoder steps —
// scene_detection and poster/audio extraction — by shelling out to the
// ffmpeg binary, the same external-process treatment probe.Prober gives
// ffprobe. Video decoding internals stay out of process: this package
// drives the ffmpeg binary rather than linking a decoder library.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"fennec/internal/domain"
	"fennec/internal/probe"
)

// Detector runs ffmpeg's scene-change filter to produce scene cut points.
type Detector struct {
	BinaryPath string
	Prober     Prober
	// Threshold is the scene filter's change-score cutoff in [0, 1].
	// ffmpeg's own default is 0.3; lower values yield more cuts.
	Threshold float64
}

// Prober reports a file's total duration so the detector can close the
// final scene's interval and fall back to a single whole-file scene.
type Prober interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

// New returns a Detector using the given ffmpeg binary path, defaulting
// to "ffmpeg" on $PATH when empty.
func New(binaryPath string, prober Prober) *Detector {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	threshold := 0.3
	return &Detector{BinaryPath: binaryPath, Prober: prober, Threshold: threshold}
}

// Detect runs the scene filter over path and returns an ordered, gapless
// list of (start, end) scenes covering [0, duration). A detector that
// finds no cuts yields a single scene spanning the whole file, per the
// spec's stated fallback.
func (d *Detector) Detect(ctx context.Context, path string) ([]domain.Scene, error) {
	duration, err := d.Prober.DurationSeconds(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("scene detect %s: %w", path, err)
	}

	cuts, err := d.sceneCutTimes(ctx, path)
	if err != nil {
		return nil, err
	}

	bounds := append([]float64{0}, cuts...)
	bounds = append(bounds, duration)

	scenes := make([]domain.Scene, 0, len(bounds)-1)
	idx := 0
	for i := 0; i < len(bounds)-1; i++ {
		start, end := bounds[i], bounds[i+1]
		if end <= start {
			continue
		}
		scenes = append(scenes, domain.Scene{
			SceneIndex:   idx,
			StartSeconds: start,
			EndSeconds:   end,
		})
		idx++
	}
	if len(scenes) == 0 {
		scenes = append(scenes, domain.Scene{SceneIndex: 0, StartSeconds: 0, EndSeconds: duration})
	}
	return scenes, nil
}

// sceneCutTimes runs ffmpeg's select=gt(scene,threshold) filter with
// showinfo and parses the emitted pts_time values from stderr, where
// ffmpeg logs filter diagnostics.
func (d *Detector) sceneCutTimes(ctx context.Context, path string) ([]float64, error) {
	filter := fmt.Sprintf("select='gt(scene,%.3f)',showinfo", d.Threshold)
	cmd := exec.CommandContext(ctx, d.BinaryPath,
		"-i", path,
		"-filter:v", filter,
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run() // ffmpeg exits nonzero writing to /dev/null output; stderr still has showinfo lines

	var cuts []float64
	for _, line := range strings.Split(stderr.String(), "\n") {
		if !strings.Contains(line, "pts_time:") {
			continue
		}
		idx := strings.Index(line, "pts_time:")
		rest := line[idx+len("pts_time:"):]
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			end = len(rest)
		}
		t, err := strconv.ParseFloat(rest[:end], 64)
		if err != nil {
			continue
		}
		cuts = append(cuts, t)
	}
	return cuts, nil
}

// Extractor decodes poster frames and scene audio ranges via ffmpeg.
type Extractor struct {
	BinaryPath   string
	PosterWidth  int
	PosterFormat string
	PosterQuality int
}

// NewExtractor returns an Extractor using the given ffmpeg binary path,
// defaulting to "ffmpeg" on $PATH, with a default poster width of 1280,
// "jpg" format and quality 80.
func NewExtractor(binaryPath string) *Extractor {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Extractor{BinaryPath: binaryPath, PosterWidth: 1280, PosterFormat: "jpg", PosterQuality: 80}
}

// ExtractPoster decodes the frame at the scene's midpoint and returns it
// encoded as PosterFormat at PosterWidth, preserving aspect ratio.
func (e *Extractor) ExtractPoster(ctx context.Context, path string, scene domain.Scene) ([]byte, string, error) {
	mid := scene.StartSeconds + (scene.EndSeconds-scene.StartSeconds)/2

	tmp, err := os.CreateTemp("", "fennec-poster-*."+e.PosterFormat)
	if err != nil {
		return nil, "", err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	qscale := qualityToQScale(e.PosterQuality)
	cmd := exec.CommandContext(ctx, e.BinaryPath,
		"-ss", strconv.FormatFloat(mid, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", e.PosterWidth),
		"-q:v", strconv.Itoa(qscale),
		"-y", tmpPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, "", fmt.Errorf("extract poster %s@%.3f: %w: %s", path, mid, err, stderr.String())
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, "", err
	}
	return data, e.PosterFormat, nil
}

// ExtractAudio decodes the scene's time range as mono 16kHz PCM WAV, the
// input shape modelhost.SpeechToText expects.
func (e *Extractor) ExtractAudio(ctx context.Context, path string, scene domain.Scene) ([]byte, error) {
	tmp, err := os.CreateTemp("", "fennec-audio-*.wav")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	duration := scene.EndSeconds - scene.StartSeconds
	cmd := exec.CommandContext(ctx, e.BinaryPath,
		"-ss", strconv.FormatFloat(scene.StartSeconds, 'f', 3, 64),
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-i", path,
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"-y", tmpPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract audio %s [%.3f,%.3f): %w: %s", path, scene.StartSeconds, scene.EndSeconds, err, stderr.String())
	}
	return os.ReadFile(tmpPath)
}

func qualityToQScale(quality int) int {
	if quality <= 0 {
		quality = 80
	}
	if quality > 100 {
		quality = 100
	}
	// ffmpeg's mjpeg qscale runs 2 (best) to 31 (worst); invert and clamp.
	q := 31 - (quality*29)/100
	if q < 2 {
		q = 2
	}
	if q > 31 {
		q = 31
	}
	return q
}

// ProbeAdapter narrows a *probe.Prober down to the Prober interface this
// package needs, so Detector doesn't require callers to reprobe the file.
type ProbeAdapter struct {
	*probe.Prober
}

// DurationSeconds probes path and returns only its duration.
func (a ProbeAdapter) DurationSeconds(ctx context.Context, path string) (float64, error) {
	meta, err := a.Prober.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return meta.DurationSeconds, nil
}
