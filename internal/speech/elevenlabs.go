package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/pkg/logger"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"
	// DefaultVoiceID is the ElevenLabs "Rachel" voice.
	DefaultVoiceID         = "21m00Tcm4TlvDq8ikWAM"
	defaultElevenLabsModel = "eleven_monolingual_v1"
)

// ElevenLabsSynthesizer streams speech from the ElevenLabs REST API.
type ElevenLabsSynthesizer struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	client  *http.Client
}

// ElevenLabsOptions configures an ElevenLabsSynthesizer.
type ElevenLabsOptions struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// NewElevenLabsSynthesizer creates a synthesizer; empty options fall back to
// the public endpoint, the Rachel voice and the monolingual v1 model.
func NewElevenLabsSynthesizer(opts ElevenLabsOptions, client *http.Client) *ElevenLabsSynthesizer {
	s := &ElevenLabsSynthesizer{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		voiceID: opts.VoiceID,
		modelID: opts.ModelID,
		client:  client,
	}
	if s.baseURL == "" {
		s.baseURL = elevenLabsBaseURL
	}
	if s.voiceID == "" {
		s.voiceID = DefaultVoiceID
	}
	if s.modelID == "" {
		s.modelID = defaultElevenLabsModel
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	return s
}

// ContentType reports the MIME type of produced audio.
func (s *ElevenLabsSynthesizer) ContentType() string {
	return "audio/mpeg"
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize opens a streaming synthesis request. On success the returned
// body yields MP3 bytes as ElevenLabs produces them.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: s.modelID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", s.baseURL, url.PathEscape(s.voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream("synthesis", start, err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		err := fmt.Errorf("elevenlabs returned status %d", resp.StatusCode)
		metrics.ObserveUpstream("synthesis", start, err)
		logger.FromContext(ctx).Error("elevenlabs rejected synthesis",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(detail)),
		)
		return nil, err
	}

	metrics.ObserveUpstream("synthesis", start, nil)
	return resp.Body, nil
}
