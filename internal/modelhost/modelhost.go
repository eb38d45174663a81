// Package modelhost adapts the four ML transforms the Pipeline and Query
// Surface need (visual encoder, speech-to-text, sentence encoder, face
// detector+encoder) behind one small contract: lazy load on first use,
// advertise readiness, expose a pure embed/detect call. The visual and
// sentence encoders wrap an HTTP embedding client; speech-to-text wraps a
// whisper.cpp binding in-process instead of over HTTP, since whisper.cpp
// has no server component here.
package modelhost

import "context"

// Host is the lazy-load/readiness contract every Model Host satisfies.
type Host interface {
	// Ready reports whether Load has already completed successfully.
	Ready() bool
	// Load performs first-use initialization (e.g. an HTTP reachability
	// check, or loading a local model file into memory). It is safe to
	// call repeatedly; once Ready, it is a no-op.
	Load(ctx context.Context) error
	// Name identifies the model/version this host currently serves.
	Name() string
}

// Readiness is the composite flag the ingest process publishes so the
// Query Surface can gate features on which hosts are currently loaded.
type Readiness struct {
	Visual   bool
	Sentence bool
	Face     bool
	Speech   bool
}
