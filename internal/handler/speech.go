package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/internal/speech"
)

const (
	errNoAudio             = "No audio file uploaded"
	errTranscriptionFailed = "Transcription failed"
	errTextRequired        = "Text is required"
	errTTSFailed           = "TTS generation failed"

	audioField    = "audio"
	fallbackAudio = "audio.webm"
	streamChunk   = 16 << 10
)

// handleTranscribe handles POST /api/transcribe
func (h *APIHandler) handleTranscribe(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile(audioField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, http.StatusRequestEntityTooLarge, "Audio file too large", log)
			return
		}
		log.Debug("no audio in upload", zap.Error(err))
		h.handleError(w, http.StatusBadRequest, errNoAudio, log)
		return
	}
	defer file.Close()

	// The transcription API infers the format from the extension.
	name := header.Filename
	if filepath.Ext(name) == "" {
		name = fallbackAudio
	}

	text, err := h.transcriber.Transcribe(r.Context(), speech.Audio{
		Data:        file,
		Filename:    name,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		log.Error("transcription failed", zap.Error(err))
		h.handleError(w, http.StatusInternalServerError, errTranscriptionFailed, log)
		return
	}

	log.Info("audio transcribed",
		zap.String("filename", name),
		zap.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusOK, models.TextResponse{Text: text})
}

// handleTTS handles POST /api/tts. Audio is relayed chunk by chunk as the
// synthesizer produces it; the body is never buffered whole.
func (h *APIHandler) handleTTS(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	var req models.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		h.handleError(w, http.StatusBadRequest, errTextRequired, log)
		return
	}

	stream, err := h.synthesizer.Synthesize(r.Context(), req.Text)
	if err != nil {
		log.Error("tts generation failed", zap.Error(err))
		h.handleError(w, http.StatusInternalServerError, errTTSFailed, log)
		return
	}
	defer stream.Close()

	// No Content-Length is set, so net/http uses chunked transfer encoding.
	w.Header().Set("Content-Type", h.synthesizer.ContentType())
	w.WriteHeader(http.StatusOK)

	n, err := relay(w, stream)
	if err != nil {
		// Headers are gone; all that is left is to cut the stream short.
		log.Warn("tts stream interrupted", zap.Int64("bytes", n), zap.Error(err))
		return
	}
	log.Info("tts stream completed", zap.Int64("bytes", n))
}

// relay copies src to w, flushing after every chunk.
func relay(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, streamChunk)

	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written, err := w.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
