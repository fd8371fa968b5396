package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func mustAtoi64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getenv("DATA_DIR", "./data")
	audioDir := getenv("AUDIO_DIR", filepath.Join(dataDir, "audio"))

	cfg := &Config{
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		DataDir:               dataDir,
		AudioDir:              audioDir,
		UploadLimitBytes:      mustAtoi64(getenv("UPLOAD_LIMIT", "52428800")), // default 50MB
		BotStatus:             getenv("BOT_STATUS", "online"),
		RegisterCommandsOnBot: getenv("REGISTER_COMMANDS_ON_BOT", "false") == "true",
	}

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.AudioDir, 0o755)
	_ = os.MkdirAll(filepath.Join(cfg.DataDir, "tmp"), 0o755)
	return cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
