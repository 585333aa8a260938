package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray .env or
// config.yaml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	// Empty values count as unset.
	t.Setenv("PORT", "")
	t.Setenv("ELEVENLABS_VOICE_ID", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Chat.Model)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 400, cfg.Chat.MaxTokens)
	assert.Equal(t, 500, cfg.Chat.FollowUpTokens)
	assert.Equal(t, "whisper-1", cfg.Speech.TranscriptionModel)
	assert.Equal(t, "elevenlabs", cfg.Speech.TTSProvider)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", cfg.Speech.VoiceID)
	assert.Equal(t, "duckduckgo", cfg.WebSearch.Provider)
	assert.Equal(t, 10, cfg.WebSearch.Timeout)
	assert.Contains(t, cfg.WebSearch.UserAgent, "Mozilla/5.0")
	assert.Equal(t, "duckduckgo", cfg.WebSearch.Providers["duckduckgo"].Type)
	assert.Equal(t, "mcp", cfg.WebSearch.Providers["zhipu"].Type)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("ELEVENLABS_API_KEY", "xi-legacy")
	t.Setenv("ELEVENLABS_VOICE_ID", "voice-legacy")
	t.Setenv("PORT", "8080")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-legacy", cfg.Upstream.APIKey)
	assert.Equal(t, "xi-legacy", cfg.Speech.ElevenLabsAPIKey)
	assert.Equal(t, "voice-legacy", cfg.Speech.VoiceID)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	inTempDir(t)
	t.Setenv("PORT", "8080")
	t.Setenv("VOICECHAT_SERVER_PORT", "9090")
	t.Setenv("VOICECHAT_CHAT_MODEL", "gpt-4o-mini")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Chat.Model)
}

func TestLoadConfigFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "voicechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
chat:
  max_tokens: 256
speech:
  tts_provider: openai
web_search:
  provider: firecrawl
  providers:
    firecrawl:
      type: firecrawl
      api_key: fc-from-file
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Chat.MaxTokens)
	assert.Equal(t, 500, cfg.Chat.FollowUpTokens)
	assert.Equal(t, "openai", cfg.Speech.TTSProvider)
	assert.Equal(t, "firecrawl", cfg.WebSearch.Provider)
	assert.Equal(t, "fc-from-file", cfg.WebSearch.Providers["firecrawl"].APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.Upstream.APIKey)
}

func TestLoadMissingExplicitFileIsIgnored(t *testing.T) {
	dir := inTempDir(t)

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
