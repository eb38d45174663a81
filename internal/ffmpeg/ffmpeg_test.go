package ffmpeg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityToQScale(t *testing.T) {
	cases := []struct {
		quality int
		want    int
	}{
		{0, 8},
		{80, 8},
		{100, 2},
		{1, 31},
		{200, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, qualityToQScale(c.quality))
	}
}

func TestNew_DefaultsBinaryAndThreshold(t *testing.T) {
	d := New("", fakeProber{duration: 10})
	assert.Equal(t, "ffmpeg", d.BinaryPath)
	assert.Equal(t, 0.3, d.Threshold)
}

func TestNewExtractor_Defaults(t *testing.T) {
	e := NewExtractor("")
	assert.Equal(t, "ffmpeg", e.BinaryPath)
	assert.Equal(t, 1280, e.PosterWidth)
	assert.Equal(t, "jpg", e.PosterFormat)
	assert.Equal(t, 80, e.PosterQuality)
}

type fakeProber struct{ duration float64 }

func (f fakeProber) DurationSeconds(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}
