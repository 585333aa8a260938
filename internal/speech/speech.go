// Package speech proxies audio to and from remote speech services. Nothing
// is recognised or synthesised locally.
package speech

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned when a provider lacks credentials.
var ErrNotConfigured = errors.New("speech provider not configured")

// Audio is an uploaded recording.
type Audio struct {
	Data        io.Reader
	Filename    string
	ContentType string
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Synthesizer converts text to an audio stream. The caller owns the returned
// stream and must close it; bytes are produced as the provider sends them.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
	ContentType() string
}
