package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the daemon.
type Config struct {
	DataDir     string
	Socket      string
	DiagLog     string
	Log         LogConfig
	Replay      ReplayConfig
	Recognition RecognitionConfig
	STT         STTConfig
	Platform    PlatformConfig
	Notify      NotifyConfig
}

type LogConfig struct {
	Backend     string // file | sqlite
	Path        string
	HistorySize int
}

type ReplayConfig struct {
	Delay time.Duration
}

type RecognitionConfig struct {
	Continuous    bool
	ResultRestart time.Duration
	ErrorRestart  time.Duration
	Language      string
	CueFile       string
	Duck          bool
}

type STTConfig struct {
	Engine       string // whisper | openai
	WhisperModel string
	OpenAIKey    string
	OpenAIModel  string
	Proxy        string
}

type PlatformConfig struct {
	Kind          string // desktop | hub | simulated
	HubURL        string
	HubShard      string
	HubDevice     string
	HubTimeout    time.Duration
	CameraCommand string
	SettingsCmd   string
	HomeCommand   string
	TorchDevice   string
}

type NotifyConfig struct {
	Speak bool
	Voice string
}

// Load reads envFile when it exists, then resolves configuration from
// environment variables and sensible defaults. Variables already set in the
// environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	dataDir := strings.TrimSpace(os.Getenv("SPEECHCMD_DATA_DIR"))
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, errors.New("config: could not determine home directory")
		}
		dataDir = filepath.Join(home, ".local", "share", "speechcmd")
	}

	backend := strings.ToLower(envOrDefault("SPEECHCMD_LOG_BACKEND", "file"))
	defaultLog := filepath.Join(dataDir, "speech_commands.txt")
	if backend == "sqlite" {
		defaultLog = filepath.Join(dataDir, "speech_commands.db")
	}

	cfg := Config{
		DataDir: dataDir,
		Socket:  envOrDefault("SPEECHCMD_SOCKET", "/tmp/speechcmd.sock"),
		DiagLog: strings.TrimSpace(os.Getenv("SPEECHCMD_DIAG_LOG")),
		Log: LogConfig{
			Backend:     backend,
			Path:        envOrDefault("SPEECHCMD_LOG_FILE", defaultLog),
			HistorySize: envOrDefaultInt("SPEECHCMD_HISTORY_SIZE", 20),
		},
		Replay: ReplayConfig{
			Delay: envMillis("SPEECHCMD_REPLAY_DELAY_MS", 500),
		},
		Recognition: RecognitionConfig{
			Continuous:    envOrDefaultBool("SPEECHCMD_CONTINUOUS", false),
			ResultRestart: envMillis("SPEECHCMD_RESULT_RESTART_MS", 500),
			ErrorRestart:  envMillis("SPEECHCMD_ERROR_RESTART_MS", 1000),
			Language:      envOrDefault("SPEECHCMD_LANGUAGE", "en"),
			CueFile:       strings.TrimSpace(os.Getenv("SPEECHCMD_CUE_FILE")),
			Duck:          envOrDefaultBool("SPEECHCMD_DUCK", true),
		},
		STT: STTConfig{
			Engine:       strings.ToLower(envOrDefault("SPEECHCMD_STT", "whisper")),
			WhisperModel: envOrDefault("WHISPER_MODEL", filepath.Join(dataDir, "models", "ggml-base.en.bin")),
			OpenAIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:  envOrDefault("OPENAI_MODEL", "whisper-1"),
			Proxy:        strings.TrimSpace(os.Getenv("SPEECHCMD_PROXY")),
		},
		Platform: PlatformConfig{
			Kind:          strings.ToLower(envOrDefault("SPEECHCMD_PLATFORM", "desktop")),
			HubURL:        strings.TrimSpace(os.Getenv("SPEECHCMD_HUB_URL")),
			HubShard:      envOrDefault("SPEECHCMD_HUB_SHARD", "SPEECHCMD"),
			HubDevice:     envOrDefault("SPEECHCMD_HUB_DEVICE", "PHONE"),
			HubTimeout:    envMillis("SPEECHCMD_HUB_TIMEOUT_MS", 3000),
			CameraCommand: envOrDefault("SPEECHCMD_CAMERA_CMD", "cheese"),
			SettingsCmd:   envOrDefault("SPEECHCMD_SETTINGS_CMD", "gnome-control-center"),
			HomeCommand:   strings.TrimSpace(os.Getenv("SPEECHCMD_HOME_CMD")),
			TorchDevice:   strings.TrimSpace(os.Getenv("SPEECHCMD_TORCH_DEVICE")),
		},
		Notify: NotifyConfig{
			Speak: envOrDefaultBool("SPEECHCMD_SPEAK", false),
			Voice: envOrDefault("SPEECHCMD_VOICE", "en"),
		},
	}

	if cfg.Log.HistorySize <= 0 {
		cfg.Log.HistorySize = 20
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.Log.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: SPEECHCMD_LOG_BACKEND must be file or sqlite, got %q", c.Log.Backend)
	}
	switch c.Platform.Kind {
	case "desktop", "simulated":
	case "hub":
		if c.Platform.HubURL == "" {
			return errors.New("config: SPEECHCMD_HUB_URL is required for the hub platform")
		}
	default:
		return fmt.Errorf("config: SPEECHCMD_PLATFORM must be desktop, hub or simulated, got %q", c.Platform.Kind)
	}
	switch c.STT.Engine {
	case "whisper":
	case "openai":
		if c.STT.OpenAIKey == "" {
			return errors.New("config: OPENAI_API_KEY not set")
		}
	default:
		return fmt.Errorf("config: SPEECHCMD_STT must be whisper or openai, got %q", c.STT.Engine)
	}
	return nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envMillis reads a non-negative millisecond count.
func envMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms < 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}
