package receiver

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Tyrowin/jointrelay/internal/joint"
)

// Actuator kinds selectable from configuration.
const (
	ActuatorSim      = "sim"
	ActuatorURScript = "urscript"
)

// DefaultChannel is the channel a receptor joins when none is given.
const DefaultChannel = "robot-1"

// DefaultReconnectDelay is the fixed wait between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// RobotConfig selects and parameterizes the motion actuator.
type RobotConfig struct {
	Actuator     string  `yaml:"actuator"`
	Addr         string  `yaml:"addr"`
	Speed        float64 `yaml:"speed"`
	Acceleration float64 `yaml:"acceleration"`
	Scale        float64 `yaml:"scale"`
}

// Config holds the receptor client configuration.
type Config struct {
	ServerURL      string        `yaml:"serverUrl"`
	Channel        string        `yaml:"channel"`
	ReconnectDelay time.Duration `yaml:"reconnectDelay"`
	Robot          RobotConfig   `yaml:"robot"`
	LogFile        string        `yaml:"logFile"`
}

// NewConfig returns a Config populated with defaults. ServerURL has no
// default and must be supplied.
func NewConfig() *Config {
	return &Config{
		Channel:        DefaultChannel,
		ReconnectDelay: DefaultReconnectDelay,
		Robot: RobotConfig{
			Actuator:     ActuatorSim,
			Addr:         joint.DefaultRobotAddr,
			Speed:        joint.DefaultVelocity,
			Acceleration: joint.DefaultAcceleration,
			Scale:        joint.DefaultScale,
		},
	}
}

// LoadConfigFile overlays the YAML document at path onto cfg.
func LoadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any receptor environment variables that are set.
func ApplyEnv(cfg *Config) {
	if url := os.Getenv("RELAY_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if channel := os.Getenv("RELAY_CHANNEL"); channel != "" {
		cfg.Channel = channel
	}
	if delay := os.Getenv("RELAY_RECONNECT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			cfg.ReconnectDelay = d
		}
	}
	if actuator := os.Getenv("ROBOT_ACTUATOR"); actuator != "" {
		cfg.Robot.Actuator = actuator
	}
	if addr := os.Getenv("ROBOT_ADDR"); addr != "" {
		cfg.Robot.Addr = addr
	}
	if speed := os.Getenv("ROBOT_JOINT_SPEED"); speed != "" {
		cfg.Robot.Speed = parseFloat(speed, cfg.Robot.Speed)
	}
	if accel := os.Getenv("ROBOT_JOINT_ACCELERATION"); accel != "" {
		cfg.Robot.Acceleration = parseFloat(accel, cfg.Robot.Acceleration)
	}
	if logFile := os.Getenv("RELAY_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
}

// Validate reports configuration errors that must stop the client at startup.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	switch c.Robot.Actuator {
	case ActuatorSim, ActuatorURScript:
	default:
		return fmt.Errorf("unknown actuator %q, must be one of: %s, %s", c.Robot.Actuator, ActuatorSim, ActuatorURScript)
	}
	return nil
}

func parseFloat(value string, defaultValue float64) float64 {
	if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
