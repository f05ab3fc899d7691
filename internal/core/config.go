package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// server's components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the game server will listen.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Game struct {
		// Message of the day shown to clients in the server list.
		MOTD string `mapstructure:"motd"`
		// Maximum number of players permitted in the world at once.
		MaxPlayers int `mapstructure:"max_players"`
		// Whether clients must complete the encryption handshake before logging in.
		OnlineMode bool `mapstructure:"online_mode"`
		// Names of the worlds to bring up. The first entry is the world
		// players spawn into.
		Worlds []string `mapstructure:"worlds"`
		// Terrain type broadcast to clients on login (e.g. "default", "flat").
		LevelType string `mapstructure:"level_type"`
		// Game mode assigned to players on login (0 = survival, 1 = creative).
		GameMode int `mapstructure:"game_mode"`
		// Dimension of the spawn world.
		Dimension int `mapstructure:"dimension"`
		// Difficulty setting broadcast to clients on login.
		Difficulty int `mapstructure:"difficulty"`
		// Radius (in chunk columns) of the initial terrain burst sent on login.
		ViewDistance int `mapstructure:"view_distance"`
	} `mapstructure:"game"`

	Database struct {
		// Path to the sqlite file holding player records. Blank disables persistence.
		Filename string `mapstructure:"filename"`
	} `mapstructure:"database"`

	Debugging struct {
		// Dump every packet sent and received to the debug log.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "EMBERFELL"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) (*Config, error) {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, game.motd can be set using: <envVarPrefix>_GAME_MOTD
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config populated with the defaults assumed for any
// option not present in the config file.
func DefaultConfig() *Config {
	c := &Config{
		Hostname:       "0.0.0.0",
		Port:           25565,
		MaxConnections: 100,
	}
	c.Logging.LogLevel = "info"
	c.Game.MOTD = "An Emberfell Server"
	c.Game.MaxPlayers = 20
	c.Game.LevelType = "default"
	c.Game.ViewDistance = 3
	return c
}

// Validate enforces the startup preconditions that must hold before the
// server is allowed to begin accepting connections.
func (c *Config) Validate() error {
	if len(c.Game.Worlds) == 0 {
		return errors.New("no world configured; at least one entry is required under game.worlds")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid listen port %d", c.Port)
	}
	if c.Game.MaxPlayers <= 0 {
		return fmt.Errorf("invalid max_players %d", c.Game.MaxPlayers)
	}
	if c.Game.ViewDistance < 0 {
		return fmt.Errorf("invalid view_distance %d", c.Game.ViewDistance)
	}
	return nil
}

// ListenAddress returns the host:port pair the game server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
