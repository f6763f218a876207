package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// TransportConfig - UDP link to the signal controller.
type TransportConfig struct {
	ListenAddr     string `json:"listen_addr"`
	ControllerAddr string `json:"controller_addr"` // beacon fallback target
	BeaconInterval string `json:"beacon_interval"`
}

// LedConfig - the LED interface board.
type LedConfig struct {
	Channels          int      `json:"channels"`
	SysfsDir          string   `json:"sysfs_dir"`
	Leds              []string `json:"leds"` // channel order
	MaxBrightness     int      `json:"max_brightness"`
	WriteRateLimit    float64  `json:"write_rate_limit"`
	WriteRateBurst    int      `json:"write_rate_burst"`
	FaultPollInterval string   `json:"fault_poll_interval"`
}

// EffectConfig - startup/steady/flicker/shutdown parameters.
type EffectConfig struct {
	SteadyIntensity   int    `json:"steady_intensity"`
	StartupRamp       string `json:"startup_ramp"`
	ShutdownRamp      string `json:"shutdown_ramp"`
	FlickerTick       string `json:"flicker_tick"`
	FlickerSeed       uint64 `json:"flicker_seed"`
	DefaultFlickerMin int    `json:"default_flicker_min"`
	DefaultFlickerMax int    `json:"default_flicker_max"`
}

// AgentConfig - control loop timing and the power capability.
type AgentConfig struct {
	TickInterval     string `json:"tick_interval"`
	ShutdownDeadline string `json:"shutdown_deadline"` // hard bound on the shutdown ramp
	PowerMode        string `json:"power_mode"`        // "systemd" or "noop"
}

// MonitorConfig - optional read-only status websocket.
type MonitorConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           string   `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// MQTTConfig - optional status publishing.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"` // tcp://IP:PORT
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// Config - top level.
type Config struct {
	Transport TransportConfig `json:"transport"`
	Led       LedConfig       `json:"led"`
	Effect    EffectConfig    `json:"effect"`
	Agent     AgentConfig     `json:"agent"`
	Monitor   MonitorConfig   `json:"monitor"`
	MQTT      MQTTConfig      `json:"mqtt"`

	SchedulesFile string `json:"schedules_file"`
}

// Load reads the file, parses the JSON and applies defaults and validation.
// A missing file yields a pure-defaults config, which runs the agent with
// the no-op driver on the original controller port.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.setDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	cfg := &Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) sanitize() {
	c.Transport.ListenAddr = strings.TrimSpace(c.Transport.ListenAddr)
	c.Transport.ControllerAddr = strings.TrimSpace(c.Transport.ControllerAddr)
	c.Led.SysfsDir = strings.TrimSpace(c.Led.SysfsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	for i := range c.Led.Leds {
		c.Led.Leds[i] = strings.TrimSpace(c.Led.Leds[i])
	}
}

func (c *Config) setDefaults() {
	// Transport defaults. 65433 is the port the signal controller dials.
	if c.Transport.ListenAddr == "" {
		c.Transport.ListenAddr = ":65433"
	}
	if c.Transport.BeaconInterval == "" {
		c.Transport.BeaconInterval = "1s"
	}

	// LED defaults
	if c.Led.Channels <= 0 {
		if len(c.Led.Leds) > 0 {
			c.Led.Channels = len(c.Led.Leds)
		} else {
			c.Led.Channels = 8
		}
	}
	if c.Led.SysfsDir == "" {
		c.Led.SysfsDir = "/sys/class/leds"
	}
	if c.Led.MaxBrightness <= 0 {
		c.Led.MaxBrightness = 255
	}
	if c.Led.WriteRateLimit <= 0 {
		c.Led.WriteRateLimit = 1000.0
	}
	if c.Led.WriteRateBurst <= 0 {
		c.Led.WriteRateBurst = 100
	}
	if c.Led.FaultPollInterval == "" {
		c.Led.FaultPollInterval = "500ms"
	}

	// Effect defaults
	if c.Effect.SteadyIntensity <= 0 {
		c.Effect.SteadyIntensity = 80
	}
	if c.Effect.StartupRamp == "" {
		c.Effect.StartupRamp = "4s"
	}
	if c.Effect.ShutdownRamp == "" {
		c.Effect.ShutdownRamp = "1500ms"
	}
	if c.Effect.FlickerTick == "" {
		c.Effect.FlickerTick = "80ms"
	}
	if c.Effect.FlickerSeed == 0 {
		c.Effect.FlickerSeed = 1
	}
	if c.Effect.DefaultFlickerMin <= 0 {
		c.Effect.DefaultFlickerMin = 10
	}
	if c.Effect.DefaultFlickerMax <= 0 {
		c.Effect.DefaultFlickerMax = 90
	}

	// Agent defaults
	if c.Agent.TickInterval == "" {
		c.Agent.TickInterval = "25ms"
	}
	if c.Agent.ShutdownDeadline == "" {
		c.Agent.ShutdownDeadline = "3s"
	}
	if c.Agent.PowerMode == "" {
		c.Agent.PowerMode = "noop"
	}

	// Monitor defaults
	if c.Monitor.Port == "" {
		c.Monitor.Port = "8080"
	}
	if len(c.Monitor.AllowedOrigins) == 0 {
		c.Monitor.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// MQTT defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ledsignal-agent"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "ledsignal"
	}

	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}
}

func (c *Config) validate() error {
	for name, v := range map[string]string{
		"beacon_interval":     c.Transport.BeaconInterval,
		"fault_poll_interval": c.Led.FaultPollInterval,
		"startup_ramp":        c.Effect.StartupRamp,
		"shutdown_ramp":       c.Effect.ShutdownRamp,
		"flicker_tick":        c.Effect.FlickerTick,
		"tick_interval":       c.Agent.TickInterval,
		"shutdown_deadline":   c.Agent.ShutdownDeadline,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config error: '%s' is not a duration: %w", name, err)
		}
	}
	if len(c.Led.Leds) > 0 && c.Led.Channels != len(c.Led.Leds) {
		return fmt.Errorf("config error: 'channels' (%d) does not match the %d configured LEDs",
			c.Led.Channels, len(c.Led.Leds))
	}
	if c.Effect.SteadyIntensity > 100 {
		return fmt.Errorf("config error: 'steady_intensity' must be within 0-100")
	}
	if c.Effect.DefaultFlickerMin > c.Effect.DefaultFlickerMax || c.Effect.DefaultFlickerMax > 100 {
		return fmt.Errorf("config error: default flicker range [%d,%d] is invalid",
			c.Effect.DefaultFlickerMin, c.Effect.DefaultFlickerMax)
	}
	return nil
}
