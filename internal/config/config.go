package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxUploadMB  int      `mapstructure:"max_upload_mb"`
}

// ChatConfig holds the model parameters for both orchestration passes.
type ChatConfig struct {
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	FollowUpTokens  int     `mapstructure:"follow_up_max_tokens"`
	DefaultResults  int     `mapstructure:"default_results"`
	MaxResultsLimit int     `mapstructure:"max_results_limit"`
}

// SpeechConfig selects and configures the transcription and synthesis backends.
type SpeechConfig struct {
	TranscriptionModel string `mapstructure:"transcription_model"`
	TTSProvider        string `mapstructure:"tts_provider"` // "elevenlabs" or "openai"
	ElevenLabsAPIKey   string `mapstructure:"elevenlabs_api_key"`
	ElevenLabsBaseURL  string `mapstructure:"elevenlabs_base_url"`
	VoiceID            string `mapstructure:"voice_id"`
	ElevenLabsModel    string `mapstructure:"elevenlabs_model"`
	OpenAIVoice        string `mapstructure:"openai_voice"`
	OpenAIModel        string `mapstructure:"openai_model"`
}

// UpstreamConfig describes how the OpenAI-compatible provider is reached.
type UpstreamConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	Timeout     int    `mapstructure:"timeout"`
	SOCKSProxy  string `mapstructure:"socks_proxy"`
	MaxIdleConn int    `mapstructure:"max_idle_conns"`
}

// WebSearchConfig represents web search configuration
type WebSearchConfig struct {
	Provider  string                    `mapstructure:"provider"`
	Timeout   int                       `mapstructure:"timeout"`
	UserAgent string                    `mapstructure:"user_agent"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type       string `mapstructure:"type"` // "duckduckgo", "mcp", "firecrawl"
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	ToolName   string `mapstructure:"tool_name"`   // MCP: tool name to call
	QueryParam string `mapstructure:"query_param"` // MCP: query parameter name
	Timeout    int    `mapstructure:"timeout"`
}

type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional config file, .env files
// and the environment, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	godotenv.Load()
	godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("VOICECHAT")
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is ok, use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv maps the unprefixed variable names used by existing
// deployments onto config keys. Prefixed VOICECHAT_* variables still win.
func bindLegacyEnv(v *viper.Viper) {
	v.BindEnv("upstream.api_key", "VOICECHAT_UPSTREAM_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("upstream.base_url", "VOICECHAT_UPSTREAM_BASE_URL", "OPENAI_BASE_URL")
	v.BindEnv("speech.elevenlabs_api_key", "VOICECHAT_SPEECH_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	v.BindEnv("speech.voice_id", "VOICECHAT_SPEECH_VOICE_ID", "ELEVENLABS_VOICE_ID")
	v.BindEnv("server.port", "VOICECHAT_SERVER_PORT", "PORT")
	v.BindEnv("web_search.providers.firecrawl.api_key", "VOICECHAT_WEB_SEARCH_PROVIDERS_FIRECRAWL_API_KEY", "FIRECRAWL_API_KEY")
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 300)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 25)

	// Chat defaults
	v.SetDefault("chat.model", "gpt-3.5-turbo")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 400)
	v.SetDefault("chat.follow_up_max_tokens", 500)
	v.SetDefault("chat.default_results", 5)
	v.SetDefault("chat.max_results_limit", 10)

	// Speech defaults
	v.SetDefault("speech.transcription_model", "whisper-1")
	v.SetDefault("speech.tts_provider", "elevenlabs")
	v.SetDefault("speech.elevenlabs_base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("speech.elevenlabs_model", "eleven_monolingual_v1")
	v.SetDefault("speech.openai_voice", "alloy")
	v.SetDefault("speech.openai_model", "tts-1")

	// Upstream defaults
	v.SetDefault("upstream.timeout", 60)
	v.SetDefault("upstream.max_idle_conns", 32)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "./data/conversations.db")

	// Web Search defaults
	v.SetDefault("web_search.provider", "duckduckgo")
	v.SetDefault("web_search.timeout", 10)
	v.SetDefault("web_search.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("web_search.providers.duckduckgo.type", "duckduckgo")
	v.SetDefault("web_search.providers.duckduckgo.base_url", "https://duckduckgo.com/html/")
	v.SetDefault("web_search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("web_search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("web_search.providers.zhipu.type", "mcp")
	v.SetDefault("web_search.providers.zhipu.base_url", "https://open.bigmodel.cn/api/mcp/web_search_prime/mcp")
	v.SetDefault("web_search.providers.zhipu.tool_name", "webSearchPrime")
	v.SetDefault("web_search.providers.zhipu.query_param", "search_query")
}
