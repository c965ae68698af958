// Package config holds the server's runtime configuration, loaded from
// the environment at startup.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host       string `env:"HOST" envDefault:"0.0.0.0"`
	Port       int    `env:"PORT" envDefault:"8080"`
	EnableCORS bool   `env:"ENABLE_CORS" envDefault:"true"`
	RedisURL   string `env:"REDIS_URL"`
	JWTSecret  string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
}

// RoomConfig configures the room lifecycle (spec.md §6.3).
type RoomConfig struct {
	PlayerGracePeriod time.Duration `env:"PLAYER_GRACE_PERIOD" envDefault:"120s"`
	HostGracePeriod   time.Duration `env:"HOST_GRACE_PERIOD" envDefault:"300s"`
	JoinLockTTL       time.Duration `env:"JOIN_LOCK_TTL" envDefault:"10s"`
	PinMaxAttempts    int           `env:"PIN_MAX_ATTEMPTS" envDefault:"50"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"10s"`
	TimerTick         time.Duration `env:"TIMER_TICK" envDefault:"1s"`
}

// Nickname, question and room size bounds. Only the nickname bounds are
// enforced (by room.ValidateNickname); the option, time-limit, points and
// players-per-room bounds are not checked anywhere in this module.
const (
	MinNicknameLength = 2
	MaxNicknameLength = 15
	MinOptionCount    = 2
	MaxOptionCount    = 4
	MinTimeLimitSec   = 5
	MaxTimeLimitSec   = 120
	MinPoints         = 100
	MaxPoints         = 10000
	MaxPlayersPerRoom = 250
)

// LoadServerConfig reads ServerConfig from the environment, falling
// back to the defaults above for anything unset.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRoomConfig reads RoomConfig from the environment.
func LoadRoomConfig() (*RoomConfig, error) {
	cfg := &RoomConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultRoomConfig returns a RoomConfig populated with spec.md §6.3's
// defaults, for callers (tests, embedding code) that don't want to read
// the environment.
func DefaultRoomConfig() *RoomConfig {
	return &RoomConfig{
		PlayerGracePeriod: 120 * time.Second,
		HostGracePeriod:   300 * time.Second,
		JoinLockTTL:       10 * time.Second,
		PinMaxAttempts:    50,
		ReaperInterval:    10 * time.Second,
		TimerTick:         1 * time.Second,
	}
}

// DefaultServerConfig mirrors the teacher's DefaultServerConfig helper
// for tests and local runs that skip environment loading.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:       "0.0.0.0",
		Port:       8080,
		EnableCORS: true,
		JWTSecret:  "dev-secret-change-me",
	}
}
