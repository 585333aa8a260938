package speech

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/pkg/logger"
)

const (
	defaultFilename    = "audio.webm"
	defaultContentType = "audio/webm"
)

// WhisperTranscriber transcribes through the OpenAI audio API.
type WhisperTranscriber struct {
	client openai.Client
	model  string
}

// NewWhisperTranscriber creates a transcriber using model (e.g. whisper-1).
func NewWhisperTranscriber(client openai.Client, model string) *WhisperTranscriber {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &WhisperTranscriber{client: client, model: model}
}

// Transcribe uploads audio and returns the recognised text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	filename := audio.Filename
	if filename == "" {
		filename = defaultFilename
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	start := time.Now()
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio.Data, filename, contentType),
		Model: openai.AudioModel(t.model),
	})
	metrics.ObserveUpstream("transcription", start, err)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	logger.FromContext(ctx).Debug("transcription completed",
		zap.String("model", t.model),
		zap.Int("chars", len(resp.Text)),
	)
	return resp.Text, nil
}

// OpenAISynthesizer streams MP3 speech from the OpenAI audio API.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// NewOpenAISynthesizer creates a synthesizer for model and voice.
func NewOpenAISynthesizer(client openai.Client, model, voice string) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAISynthesizer{client: client, model: model, voice: voice}
}

// ContentType reports the MIME type of produced audio.
func (s *OpenAISynthesizer) ContentType() string {
	return "audio/mpeg"
}

// Synthesize starts speech generation and returns the response body unread.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	start := time.Now()
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	metrics.ObserveUpstream("synthesis", start, err)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	return resp.Body, nil
}
