package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/chat"
	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/internal/handler"
	"github.com/young1lin/voicechat/internal/httpclient"
	"github.com/young1lin/voicechat/internal/llm"
	"github.com/young1lin/voicechat/internal/search"
	"github.com/young1lin/voicechat/internal/speech"
	"github.com/young1lin/voicechat/internal/storage"
	"github.com/young1lin/voicechat/pkg/logger"
)

func runServer(cfg *config.Config) error {
	upstream, err := httpclient.New(httpclient.Options{
		Timeout:      time.Duration(cfg.Upstream.Timeout) * time.Second,
		MaxIdleConns: cfg.Upstream.MaxIdleConn,
		SOCKSProxy:   cfg.Upstream.SOCKSProxy,
	})
	if err != nil {
		return fmt.Errorf("upstream client: %w", err)
	}

	searcher, err := newSearchManager(cfg)
	if err != nil {
		return err
	}

	if cfg.Upstream.APIKey == "" && cfg.Upstream.BaseURL == "" {
		logger.Warn("OPENAI_API_KEY is not set, chat and transcription will fail")
	}
	sdk := llm.NewSDKClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, upstream)

	orchestrator := chat.NewOrchestrator(
		llm.NewOpenAIClient(sdk, cfg.Chat.Model),
		searcher,
		chat.Options{
			Temperature:       cfg.Chat.Temperature,
			MaxTokens:         cfg.Chat.MaxTokens,
			FollowUpMaxTokens: cfg.Chat.FollowUpTokens,
			DefaultResults:    cfg.Chat.DefaultResults,
			MaxResultsLimit:   cfg.Chat.MaxResultsLimit,
		},
	)

	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}

	opts := handler.Options{
		Conversation: orchestrator,
		Transcriber:  speech.NewWhisperTranscriber(sdk, cfg.Speech.TranscriptionModel),
		Synthesizer:  synthesizer,
		MaxUploadMB:  cfg.Server.MaxUploadMB,
	}

	if cfg.Storage.Enabled {
		journal, err := storage.NewJournal(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
		opts.Journal = journal
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Wrap(handler.NewAPIHandler(opts), cfg.Server.CORSOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("\n  voicechat %s\n  Server: http://%s:%d\n  Health: http://%s:%d/api/health\n  Search: %s\n\n",
		Version, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port, cfg.WebSearch.Provider)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// newSearchManager builds the search manager on its own client so search
// traffic never competes with model calls for pooled connections.
func newSearchManager(cfg *config.Config) (*search.Manager, error) {
	client, err := httpclient.New(httpclient.Options{
		MaxIdleConns: cfg.Upstream.MaxIdleConn,
		SOCKSProxy:   cfg.Upstream.SOCKSProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}
	return search.NewManager(&cfg.WebSearch, client), nil
}

// newSynthesizer builds the TTS backend on a client without an overall
// timeout: audio streams may outlast upstream.timeout, so only the wait for
// response headers is bounded. The request context ends the stream when the
// caller goes away.
func newSynthesizer(cfg *config.Config) (speech.Synthesizer, error) {
	client, err := httpclient.New(httpclient.Options{
		MaxIdleConns:          cfg.Upstream.MaxIdleConn,
		SOCKSProxy:            cfg.Upstream.SOCKSProxy,
		ResponseHeaderTimeout: time.Duration(cfg.Upstream.Timeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	switch cfg.Speech.TTSProvider {
	case "openai":
		sdk := llm.NewSDKClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, client)
		return speech.NewOpenAISynthesizer(sdk, cfg.Speech.OpenAIModel, cfg.Speech.OpenAIVoice), nil
	default:
		if cfg.Speech.ElevenLabsAPIKey == "" {
			logger.Warn("ELEVENLABS_API_KEY is not set, text-to-speech will fail")
		}
		return speech.NewElevenLabsSynthesizer(speech.ElevenLabsOptions{
			APIKey:  cfg.Speech.ElevenLabsAPIKey,
			BaseURL: cfg.Speech.ElevenLabsBaseURL,
			VoiceID: cfg.Speech.VoiceID,
			ModelID: cfg.Speech.ElevenLabsModel,
		}, client), nil
	}
}
