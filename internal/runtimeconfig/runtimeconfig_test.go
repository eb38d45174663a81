package runtimeconfig

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"fennec/internal/store"
)

type fakeStore struct {
	values map[string]json.RawMessage
}

func (f *fakeStore) ConfigGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func TestReader_Enabled_AlwaysOnStages(t *testing.T) {
	r := New(&fakeStore{values: map[string]json.RawMessage{}})
	assert.True(t, r.Enabled("metadata"))
	assert.True(t, r.Enabled("scene_detection"))
	assert.True(t, r.Enabled("poster_extraction"))
}

func TestReader_Enabled_GatesOnConfig(t *testing.T) {
	models, _ := json.Marshal(map[string]bool{"clip": true, "whisper": false, "arcface": true})
	r := New(&fakeStore{values: map[string]json.RawMessage{
		"enrichment_models": models,
	}})
	assert.True(t, r.Enabled("visual_embedding"))
	assert.False(t, r.Enabled("transcription"))
	assert.True(t, r.Enabled("face_detection"))
}

func TestReader_Version(t *testing.T) {
	versions, _ := json.Marshal(map[string]store.ModelVersion{
		"clip": {Version: "v2", Dimension: 512},
	})
	r := New(&fakeStore{values: map[string]json.RawMessage{
		"model_versions": versions,
	}})
	assert.Equal(t, "v2", r.Version("clip"))
	assert.Equal(t, "", r.Version("unknown"))
}
