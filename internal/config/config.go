package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS     GPSConfig     `yaml:"gps"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
	UDP     UDPConfig     `yaml:"udp"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	AMQP    AMQPConfig    `yaml:"amqp"`
	FixLED  FixLEDConfig  `yaml:"fix_led"`
	Web     WebConfig     `yaml:"web"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`
	// Device empty means auto-detect.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// StrictLength drops frames whose declared payload length is not 84.
	StrictLength bool `yaml:"strict_length"`
	// StaleAfter marks the published fix stale once it is older than this.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type CaptureConfig struct {
	Record RecordConfig `yaml:"record"`
	Replay ReplayConfig `yaml:"replay"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

type KafkaConfig struct {
	Enable  bool     `yaml:"enable"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Key     string   `yaml:"key"`
}

type AMQPConfig struct {
	Enable     bool   `yaml:"enable"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type FixLEDConfig struct {
	Enable bool `yaml:"enable"`
	Pin    int  `yaml:"pin"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
	// LogLines is how many recent log lines /api/logs can return.
	LogLines int `yaml:"log_lines"`
}

var supportedBauds = map[int]bool{4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", stripLinePrefixes(te.Errors))
		}
		return Config{}, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if !cfg.GPS.Enable && !cfg.Capture.Replay.Enable {
		return fmt.Errorf("gps.enable or capture.replay.enable is required")
	}
	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}
	if !supportedBauds[cfg.GPS.Baud] {
		return fmt.Errorf("gps.baud %d is not supported", cfg.GPS.Baud)
	}
	if cfg.GPS.StaleAfter <= 0 {
		cfg.GPS.StaleAfter = 3 * time.Second
	}

	if cfg.Capture.Record.Enable {
		if cfg.Capture.Record.Path == "" {
			return fmt.Errorf("capture.record.path is required when capture.record.enable is true")
		}
		if !cfg.GPS.Enable {
			return fmt.Errorf("capture.record requires gps.enable")
		}
	}
	if cfg.Capture.Replay.Enable {
		if cfg.Capture.Replay.Path == "" {
			return fmt.Errorf("capture.replay.path is required when capture.replay.enable is true")
		}
		if cfg.Capture.Replay.Speed == 0 {
			cfg.Capture.Replay.Speed = 1
		}
		if cfg.Capture.Replay.Speed < 0 {
			return fmt.Errorf("capture.replay.speed must be > 0")
		}
	}
	if cfg.Capture.Record.Enable && cfg.Capture.Replay.Enable {
		return fmt.Errorf("capture.record and capture.replay cannot both be enabled")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	if cfg.Log.Filename != "" {
		if cfg.Log.MaxSize <= 0 {
			cfg.Log.MaxSize = 10
		}
		if cfg.Log.MaxBackups <= 0 {
			cfg.Log.MaxBackups = 3
		}
		if cfg.Log.MaxAge <= 0 {
			cfg.Log.MaxAge = 28
		}
	}

	if cfg.UDP.Enable && strings.TrimSpace(cfg.UDP.Dest) == "" {
		return fmt.Errorf("udp.dest is required when udp.enable is true")
	}

	if cfg.MQTT.Enable {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ubxnav"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "ubxnav/fix"
	}

	if cfg.Kafka.Enable && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enable is true")
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "ubxnav.fix"
	}

	if cfg.AMQP.Enable && strings.TrimSpace(cfg.AMQP.URL) == "" {
		return fmt.Errorf("amqp.url is required when amqp.enable is true")
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "ubxnav"
	}
	if cfg.AMQP.RoutingKey == "" {
		cfg.AMQP.RoutingKey = "nav.pvt"
	}

	if cfg.FixLED.Enable && cfg.FixLED.Pin <= 0 {
		return fmt.Errorf("fix_led.pin must be > 0 when fix_led.enable is true")
	}

	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.LogLines == 0 {
		cfg.Web.LogLines = 2000
	}
	if cfg.Web.LogLines < 0 {
		return fmt.Errorf("web.log_lines must be > 0")
	}
	return nil
}

// stripLinePrefixes turns yaml.v3's "line N: msg" entries into "msg".
func stripLinePrefixes(errs []string) string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.HasPrefix(e, "line ") {
			if _, rest, ok := strings.Cut(e, ": "); ok {
				e = rest
			}
		}
		out = append(out, e)
	}
	return strings.Join(out, "; ")
}
