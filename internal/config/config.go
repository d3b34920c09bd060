package config

import (
	"errors"
	"fmt"
	"strings"

	ini "gopkg.in/ini.v1"

	"lora-monitor/internal/device"
	"lora-monitor/internal/frame"
)

type DeviceConfig struct {
	DevEUI                string `ini:"dev_eui"`
	AppEUI                string `ini:"app_eui"`
	AppKey                string `ini:"app_key"`
	DeviceName            string `ini:"device_name"`
	ExpectedPayloadLength int    `ini:"expected_payload_length"`
	ExpectedPort          int    `ini:"expected_port"`
}

type DecoderConfig struct {
	DevAddrOrder string `ini:"devaddr_order"`
	MTypeCheck   string `ini:"mtype_check"`
}

type InputConfig struct {
	Source string `ini:"source"`
	File   string `ini:"file"`
}

type OutputConfig struct {
	Format  string `ini:"format"`
	ShowAll bool   `ini:"show_all"`
}

type MQTTConfig struct {
	Broker   string `ini:"broker"`
	Username string `ini:"username"`
	Password string `ini:"password"`
	QoS      int    `ini:"qos"`
	ClientID string `ini:"client_id"`
	Topic    string `ini:"topic"`
	Retain   bool   `ini:"retain"`
}

type WebhookConfig struct {
	URL            string `ini:"url"`
	Method         string `ini:"method"`
	TimeoutSeconds int    `ini:"timeout_seconds"`
	AuthType       string `ini:"auth_type"`
	AuthToken      string `ini:"auth_token"`
	AuthHeaderKey  string `ini:"auth_header_key"`
}

type LoggingConfig struct {
	File       string `ini:"file"`
	Level      string `ini:"level"`
	MaxSizeMB  int    `ini:"max_size_mb"`
	MaxBackups int    `ini:"max_backups"`
	MaxAgeDays int    `ini:"max_age_days"`
}

type MetricsConfig struct {
	Bind string `ini:"bind"`
}

type Config struct {
	Device     DeviceConfig
	Decoder    DecoderConfig
	Input      InputConfig
	Output     OutputConfig
	MQTTInput  MQTTConfig
	MQTTOutput MQTTConfig
	Webhook    WebhookConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
}

// Input sources.
const (
	SourceStdin = "stdin"
	SourceFile  = "file"
	SourceMQTT  = "mqtt"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the configuration used when no file is given. The
// identifiers are those flashed into the reference sensor firmware.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			DevEUI:                "0102030405060708",
			AppEUI:                "1112131415161718",
			AppKey:                "21222324252627282A2B2C2D2E2F3031",
			DeviceName:            "Sensorite V4",
			ExpectedPayloadLength: device.DefaultPayloadLength,
			ExpectedPort:          device.DefaultPort,
		},
		Decoder: DecoderConfig{
			DevAddrOrder: "wire",
			MTypeCheck:   "strict",
		},
		Input:  InputConfig{Source: SourceStdin},
		Output: OutputConfig{Format: FormatText},
		MQTTInput: MQTTConfig{
			ClientID: "lora-monitor-in",
		},
		MQTTOutput: MQTTConfig{
			ClientID: "lora-monitor-out",
		},
		Webhook: WebhookConfig{
			Method:         "POST",
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads an ini file over the defaults. Keys missing from the file keep
// their default value. An empty path yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	// IgnoreInlineComment keeps '#' inside values such as MQTT wildcard topics.
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return cfg, err
	}
	sections := []struct {
		name string
		dst  any
	}{
		{"device", &cfg.Device},
		{"decoder", &cfg.Decoder},
		{"input", &cfg.Input},
		{"output", &cfg.Output},
		{"mqtt_input", &cfg.MQTTInput},
		{"mqtt_output", &cfg.MQTTOutput},
		{"webhook", &cfg.Webhook},
		{"logging", &cfg.Logging},
		{"metrics", &cfg.Metrics},
	}
	for _, s := range sections {
		if err := f.Section(s.name).MapTo(s.dst); err != nil {
			return cfg, fmt.Errorf("section %s: %w", s.name, err)
		}
	}
	cfg.MQTTInput.Topic = strings.Trim(cfg.MQTTInput.Topic, "\"'")
	cfg.MQTTOutput.Topic = strings.Trim(cfg.MQTTOutput.Topic, "\"'")
	return cfg, cfg.Validate()
}

// Validate checks enum values and the settings each enabled feature needs.
func (c Config) Validate() error {
	if _, err := c.Signature(); err != nil {
		return err
	}
	if _, err := frame.ParseDevAddrOrder(c.Decoder.DevAddrOrder); err != nil {
		return err
	}
	if _, err := device.ParseMTypePolicy(c.Decoder.MTypeCheck); err != nil {
		return err
	}
	switch c.Input.Source {
	case SourceStdin:
	case SourceFile:
		if c.Input.File == "" {
			return errors.New("input source file needs [input] file")
		}
	case SourceMQTT:
		if c.MQTTInput.Broker == "" || c.MQTTInput.Topic == "" {
			return errors.New("input source mqtt needs [mqtt_input] broker and topic")
		}
	default:
		return fmt.Errorf("unknown input source %q", c.Input.Source)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	if c.MQTTOutput.Broker != "" && c.MQTTOutput.Topic == "" {
		return errors.New("[mqtt_output] topic must be set when a broker is configured")
	}
	return nil
}

// Signature builds the device signature from [device].
func (c Config) Signature() (device.Signature, error) {
	d := c.Device
	s, err := device.NewSignature(d.DeviceName, d.DevEUI, d.AppEUI, d.AppKey, d.ExpectedPayloadLength, d.ExpectedPort)
	if err != nil {
		return s, fmt.Errorf("device: %w", err)
	}
	return s, nil
}

func (c Config) Filter() (device.Filter, error) {
	sig, err := c.Signature()
	if err != nil {
		return device.Filter{}, err
	}
	policy, err := device.ParseMTypePolicy(c.Decoder.MTypeCheck)
	if err != nil {
		return device.Filter{}, err
	}
	return device.Filter{Signature: sig, Policy: policy}, nil
}

func (c Config) DevAddrOrder() (frame.DevAddrOrder, error) {
	return frame.ParseDevAddrOrder(c.Decoder.DevAddrOrder)
}
