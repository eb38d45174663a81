package edl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimecode_RoundTrip(t *testing.T) {
	got := FormatTimecode(125.033, 30)
	assert.Equal(t, "00:02:05:01", got)

	secs, err := ParseTimecode(got, 30)
	require.NoError(t, err)
	assert.InDelta(t, 125.033, secs, 1.0/30)
}

func TestExport_ParseEvent_RoundTrips(t *testing.T) {
	clips := []Clip{
		{SceneID: 1, InTime: 0, OutTime: 5.2, FPS: 24},
		{SceneID: 2, InTime: 5.2, OutTime: 12.8, FPS: 24},
	}
	body := Export("library export", clips)

	var events []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "0") {
			events = append(events, line)
		}
	}
	require.Len(t, events, 2)

	for i, line := range events {
		sceneID, in, out, err := ParseEvent(line, clips[i].FPS)
		require.NoError(t, err)
		assert.Equal(t, clips[i].SceneID, sceneID)
		assert.InDelta(t, clips[i].InTime, in, 1.0/clips[i].FPS)
		assert.InDelta(t, clips[i].OutTime, out, 1.0/clips[i].FPS)
	}
}
