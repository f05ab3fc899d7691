package core

import (
	"testing"
)

func TestConfig_ListenAddress(t *testing.T) {
	cfg := &Config{
		Hostname: "127.0.0.1",
		Port:     25565,
	}

	addr := cfg.ListenAddress()
	expected := "127.0.0.1:25565"
	if addr != expected {
		t.Errorf("ListenAddress() want = %s, got = %s", expected, addr)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Game.Worlds = []string{"overworld"}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "no worlds configured",
			mutate:  func(c *Config) { c.Game.Worlds = nil },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Port = -1 },
			wantErr: true,
		},
		{
			name:    "invalid max players",
			mutate:  func(c *Config) { c.Game.MaxPlayers = 0 },
			wantErr: true,
		},
		{
			name:    "negative view distance",
			mutate:  func(c *Config) { c.Game.ViewDistance = -2 },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
