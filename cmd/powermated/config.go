package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"powermate/pkg/powermate"
)

// Config is the top-level YAML configuration for the powermated daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Timing  TimingConfig  `yaml:"timing"`
	LED     LEDConfig     `yaml:"led"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	// Dir is scanned for event* nodes when the /dev/GriffinPowermate symlink is absent.
	Dir string `yaml:"dir"`

	// Fake runs against an in-memory device (no hardware needed).
	Fake bool `yaml:"fake,omitempty"`

	// RawOnly publishes raw input records instead of consolidated events.
	RawOnly bool `yaml:"raw_only,omitempty"`
}

type TimingConfig struct {
	LongPressMS   int `yaml:"long_press_ms"`
	DoubleClickMS int `yaml:"double_click_ms"`
	TurnDelayMS   int `yaml:"turn_delay_ms"`

	// ReadDelayMS bounds idle waits; 0 waits indefinitely, which delays
	// shutdown until the next knob event.
	ReadDelayMS int `yaml:"read_delay_ms"`

	ClockSource string `yaml:"clock_source"`

	SwallowReleaseQuirk bool `yaml:"swallow_release_quirk"`
}

type LEDConfig struct {
	Brightness int              `yaml:"brightness"`
	Flash      FlashConfig      `yaml:"flash"`
	GPIOMirror GPIOMirrorConfig `yaml:"gpio_mirror"`
}

type FlashConfig struct {
	Count      int `yaml:"count"`
	Brightness int `yaml:"brightness"`
	OnMS       int `yaml:"on_ms"`
	OffMS      int `yaml:"off_ms"`
}

// GPIOMirrorConfig drives an output line high while the LED is lit.
type GPIOMirrorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port 0 disables the HTTP server.
	Port   int    `yaml:"port"`
	WSPath string `yaml:"ws_path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	fl := powermate.DefaultFlash()
	tm := powermate.DefaultTiming()

	return Config{
		Device: DeviceConfig{
			Dir: "/dev/input/",
		},
		Timing: TimingConfig{
			LongPressMS:         int(tm.LongPress / time.Millisecond),
			DoubleClickMS:       int(tm.DoubleClick / time.Millisecond),
			TurnDelayMS:         int(tm.TurnDelay / time.Millisecond),
			ReadDelayMS:         defaultReadDelayMS,
			ClockSource:         tm.TurnClock.String(),
			SwallowReleaseQuirk: true,
		},
		LED: LEDConfig{
			Brightness: powermate.MaxBrightness,
			Flash: FlashConfig{
				Count:      fl.Count,
				Brightness: fl.Brightness,
				OnMS:       int(fl.On / time.Millisecond),
				OffMS:      int(fl.Off / time.Millisecond),
			},
			GPIOMirror: GPIOMirrorConfig{
				Chip: "gpiochip0",
				Line: 17,
			},
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port:   3002,
			WSPath: "/ws",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "powermated",
			TopicPrefix: "powermate",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&yaml.Node{}); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line overrides; each is applied only if non-nil.
type FlagOverrides struct {
	DeviceDir *string
	Fake      *bool
	RawOnly   *bool

	IPCSocketPath *string
	HTTPPort      *int
	MQTTBroker    *string

	LogLevel *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if it
// holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.DeviceDir != nil {
		cfg.Device.Dir = *o.DeviceDir
	}
	if o.Fake != nil {
		cfg.Device.Fake = *o.Fake
	}
	if o.RawOnly != nil {
		cfg.Device.RawOnly = *o.RawOnly
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.MQTTBroker != nil {
		// Naming a broker on the command line implies enabling MQTT.
		cfg.MQTT.Broker = *o.MQTTBroker
		cfg.MQTT.Enabled = *o.MQTTBroker != ""
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if c.Device.Dir == "" && !c.Device.Fake {
		return errors.New("device.dir must not be empty")
	}

	// Timing
	if c.Timing.LongPressMS <= 0 {
		return errors.New("timing.long_press_ms must be > 0")
	}
	if c.Timing.DoubleClickMS <= 0 {
		return errors.New("timing.double_click_ms must be > 0")
	}
	if c.Timing.TurnDelayMS < 0 {
		return errors.New("timing.turn_delay_ms must be >= 0")
	}
	if c.Timing.ReadDelayMS < 0 {
		return errors.New("timing.read_delay_ms must be >= 0")
	}
	if _, err := powermate.ParseClockSource(c.Timing.ClockSource); err != nil {
		return fmt.Errorf("timing.clock_source: %w", err)
	}

	// LED
	if c.LED.Brightness < powermate.MinBrightness || c.LED.Brightness > powermate.MaxBrightness {
		return fmt.Errorf("led.brightness must be between %d and %d", powermate.MinBrightness, powermate.MaxBrightness)
	}
	if c.LED.Flash.Count < 0 {
		return errors.New("led.flash.count must be >= 0")
	}
	if c.LED.Flash.OnMS < 0 || c.LED.Flash.OffMS < 0 {
		return errors.New("led.flash.on_ms and led.flash.off_ms must be >= 0")
	}
	if c.LED.GPIOMirror.Enabled {
		if c.LED.GPIOMirror.Chip == "" {
			return errors.New("led.gpio_mirror.enabled is true but led.gpio_mirror.chip is empty")
		}
		if c.LED.GPIOMirror.Line < 0 {
			return errors.New("led.gpio_mirror.line must be >= 0")
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.HTTP.Port > 0 && !strings.HasPrefix(c.HTTP.WSPath, "/") {
		return errors.New("http.ws_path must start with /")
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.ClientID == "" {
			return errors.New("mqtt.client_id must not be empty")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			return errors.New("mqtt.topic_prefix must be non-empty and contain no wildcards")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return errors.New("logging.format must be text or json")
	}

	return nil
}

// ToTiming converts the file config into handler timing.
func (c *Config) ToTiming() powermate.Timing {
	clock, _ := powermate.ParseClockSource(c.Timing.ClockSource)
	return powermate.Timing{
		LongPress:   msDuration(c.Timing.LongPressMS),
		DoubleClick: msDuration(c.Timing.DoubleClickMS),
		TurnDelay:   msDuration(c.Timing.TurnDelayMS),
		ReadDelay:   msDuration(c.Timing.ReadDelayMS),
		TurnClock:   clock,
	}
}

// ToFlash converts the configured flash defaults.
func (c *Config) ToFlash() powermate.FlashConfig {
	return powermate.FlashConfig{
		Count:      c.LED.Flash.Count,
		Brightness: c.LED.Flash.Brightness,
		On:         msDuration(c.LED.Flash.OnMS),
		Off:        msDuration(c.LED.Flash.OffMS),
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
