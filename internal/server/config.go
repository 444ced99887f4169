package server

import "time"

// Config holds the chat server settings. Fields are read from the
// environment (and a .env file) by foundation's core/config.Load.
type Config struct {
	Addr            string        `env:"CHAT_ADDR" envDefault:"127.0.0.1:3000"`
	ChannelCapacity int           `env:"CHAT_CHANNEL_CAPACITY" envDefault:"100"`
	WriteWait       time.Duration `env:"CHAT_WRITE_WAIT" envDefault:"10s"`
	ReadLimit       int64         `env:"CHAT_READ_LIMIT" envDefault:"0"`
	AuditDB         string        `env:"CHAT_AUDIT_DB"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
}

// Default values, mirrored by the envDefault tags above.
const (
	DefaultAddr            = "127.0.0.1:3000"
	DefaultChannelCapacity = 100
	DefaultWriteWait       = 10 * time.Second

	// Path is the WebSocket endpoint.
	Path = "/ws"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		ChannelCapacity: DefaultChannelCapacity,
		WriteWait:       DefaultWriteWait,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}
