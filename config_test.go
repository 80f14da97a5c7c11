package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/partyrooms/games"
)

func validConfig() *Config {
	return &Config{
		port:          8080,
		roomTTL:       time.Hour,
		sweepInterval: time.Minute,
		guessTimeout:  30 * time.Second,
		rateLimit:     5,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 70000 }, true},
		{"no ttl", func(c *Config) { c.roomTTL = 0 }, true},
		{"no sweep interval", func(c *Config) { c.sweepInterval = 0 }, true},
		{"guess timeout disabled", func(c *Config) { c.guessTimeout = 0 }, false},
		{"negative guess timeout", func(c *Config) { c.guessTimeout = -time.Second }, true},
		{"no rate", func(c *Config) { c.rateLimit = 0 }, true},
		{"permanent rooms", func(c *Config) { c.permanentRooms = []string{"LOBBY=guessing", "DARES=challenges"} }, false},
		{"permanent room without type", func(c *Config) { c.permanentRooms = []string{"LOBBY"} }, true},
		{"permanent room bad type", func(c *Config) { c.permanentRooms = []string{"LOBBY=poker"} }, true},
		{"permanent room bad code", func(c *Config) { c.permanentRooms = []string{"LOB BY=guessing"} }, true},
		{"permanent room twice", func(c *Config) { c.permanentRooms = []string{"LOBBY=guessing", "LOBBY=challenges"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Seeds(t *testing.T) {
	c := validConfig()
	c.permanentRooms = []string{" LOBBY =Guessing", "DARES=challenges"}
	require.NoError(t, c.validate())

	assert.Equal(t, []seed{
		{code: "LOBBY", gameType: games.GameGuessing},
		{code: "DARES", gameType: games.GameChallenges},
	}, c.seeds)

	// validating twice does not duplicate seeds
	require.NoError(t, c.validate())
	assert.Len(t, c.seeds, 2)
}

func TestConfig_Scheme(t *testing.T) {
	c := validConfig()
	assert.Equal(t, "http", c.scheme())

	c.tlsCert, c.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", c.scheme())
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 24*time.Hour, cfg.roomTTL)
	assert.Equal(t, time.Hour, cfg.sweepInterval)
	assert.Equal(t, 30*time.Second, cfg.guessTimeout)
	assert.Equal(t, 5.0, cfg.rateLimit)
	assert.Empty(t, cfg.db)
	assert.NoError(t, cfg.validate())
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("PARTYROOMS_PORT", "9090")
	t.Setenv("PARTYROOMS_ROOM_TTL", "2h")
	t.Setenv("PARTYROOMS_DB", "/tmp/rooms.db")
	t.Setenv("PARTYROOMS_PERMANENT_ROOM", "LOBBY=guessing")

	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 2*time.Hour, cfg.roomTTL)
	assert.Equal(t, "/tmp/rooms.db", cfg.db)
	assert.Equal(t, []string{"LOBBY=guessing"}, cfg.permanentRooms)
}

func TestNewCmd_FlagsOverrideDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "9000",
		"--guess_timeout", "0s",
		"--permanent-room", "A=guessing",
		"--permanent-room", "B=challenges",
	}))

	assert.Equal(t, 9000, cfg.port)
	assert.Equal(t, time.Duration(0), cfg.guessTimeout)
	assert.Equal(t, []string{"A=guessing", "B=challenges"}, cfg.permanentRooms)
}
