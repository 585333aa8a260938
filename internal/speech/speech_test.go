package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/voicechat/internal/llm"
)

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody elevenLabsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "audio/mpeg")
		for _, chunk := range []string{"ID3", "frame-1", "frame-2"} {
			io.WriteString(w, chunk)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer(ElevenLabsOptions{APIKey: "xi-key", BaseURL: srv.URL + "/"}, srv.Client())
	stream, err := s.Synthesize(context.Background(), "Hello world")
	require.NoError(t, err)
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "ID3frame-1frame-2", string(audio))

	assert.Equal(t, "/v1/text-to-speech/"+DefaultVoiceID+"/stream", gotPath)
	assert.Equal(t, "xi-key", gotKey)
	assert.Equal(t, elevenLabsRequest{Text: "Hello world", ModelID: "eleven_monolingual_v1"}, gotBody)
	assert.Equal(t, "audio/mpeg", s.ContentType())
}

func TestElevenLabsFailures(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		s := NewElevenLabsSynthesizer(ElevenLabsOptions{}, nil)
		_, err := s.Synthesize(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":{"status":"invalid_api_key"}}`)
		}))
		defer srv.Close()

		s := NewElevenLabsSynthesizer(ElevenLabsOptions{APIKey: "bad", BaseURL: srv.URL, VoiceID: "voice"}, nil)
		stream, err := s.Synthesize(context.Background(), "hi")
		assert.Nil(t, stream)
		assert.ErrorContains(t, err, "401")
	})
}

func TestWhisperTranscribe(t *testing.T) {
	var filename, contentType, model, audio string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			audio = string(data)
			filename = header.Filename
			contentType = header.Header.Get("Content-Type")
		}
		model = r.FormValue("model")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"hello from the recording"}`)
	}))
	defer srv.Close()

	sdk := llm.NewSDKClient(srv.URL+"/v1/", "sk-test", srv.Client())
	text, err := NewWhisperTranscriber(sdk, "").Transcribe(context.Background(), Audio{
		Data: strings.NewReader("webm-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "hello from the recording", text)
	assert.Equal(t, "webm-bytes", audio)
	assert.Equal(t, "audio.webm", filename)
	assert.Equal(t, "audio/webm", contentType)
	assert.Equal(t, "whisper-1", model)
}

func TestWhisperTranscribeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	sdk := llm.NewSDKClient(srv.URL+"/v1/", "sk-test", srv.Client())
	_, err := NewWhisperTranscriber(sdk, "whisper-1").Transcribe(context.Background(), Audio{
		Data:     strings.NewReader("not audio"),
		Filename: "clip.txt",
	})
	assert.Error(t, err)
}

func TestOpenAISynthesize(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "mp3-bytes")
	}))
	defer srv.Close()

	sdk := llm.NewSDKClient(srv.URL+"/v1/", "sk-test", srv.Client())
	stream, err := NewOpenAISynthesizer(sdk, "", "").Synthesize(context.Background(), "Say this")
	require.NoError(t, err)
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(audio))
	assert.Equal(t, "Say this", got["input"])
	assert.Equal(t, "tts-1", got["model"])
	assert.Equal(t, "alloy", got["voice"])
	assert.Equal(t, "mp3", got["response_format"])
}
