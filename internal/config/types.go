package config

type Config struct {
	DiscordToken          string
	DataDir               string
	AudioDir              string
	UploadLimitBytes      int64
	BotStatus             string // online/dnd/idle
	RegisterCommandsOnBot bool
}
