package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const gpsOn = "gps:\n  enable: true\n"

func TestLoad_RequiresSource(t *testing.T) {
	path := writeTempConfig(t, "gps: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "gps.enable or capture.replay.enable is required")
}

func TestLoad_EmptyFileRequiresSource(t *testing.T) {
	path := writeTempConfig(t, "")
	_, err := Load(path)
	requireErrEq(t, err, "gps.enable or capture.replay.enable is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, gpsOn)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Baud != 9600 {
		t.Fatalf("baud=%d want 9600", cfg.GPS.Baud)
	}
	if cfg.GPS.StaleAfter != 3*time.Second {
		t.Fatalf("stale_after=%s want 3s", cfg.GPS.StaleAfter)
	}
	if cfg.GPS.StrictLength {
		t.Fatalf("strict_length should default to false")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("log defaults=%+v", cfg.Log)
	}
	if cfg.MQTT.Topic != "ubxnav/fix" || cfg.MQTT.ClientID != "ubxnav" {
		t.Fatalf("mqtt defaults=%+v", cfg.MQTT)
	}
	if cfg.Kafka.Topic != "ubxnav.fix" || cfg.AMQP.Exchange != "ubxnav" || cfg.AMQP.RoutingKey != "nav.pvt" {
		t.Fatalf("broker defaults kafka=%+v amqp=%+v", cfg.Kafka, cfg.AMQP)
	}
	if cfg.Web.Enable || cfg.Web.Listen != ":8080" || cfg.Web.LogLines != 2000 {
		t.Fatalf("web defaults=%+v", cfg.Web)
	}
}

func TestLoad_LogRotationDefaults(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"log:\n  filename: /tmp/ubxnav.log\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.MaxSize != 10 || cfg.Log.MaxBackups != 3 || cfg.Log.MaxAge != 28 {
		t.Fatalf("rotation defaults=%+v", cfg.Log)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{"BadBaud", "  baud: 1200\n", "gps.baud 1200 is not supported"},
		{"UDPNeedsDest", "udp:\n  enable: true\n", "udp.dest is required when udp.enable is true"},
		{"MQTTNeedsBroker", "mqtt:\n  enable: true\n", "mqtt.broker is required when mqtt.enable is true"},
		{"MQTTQoS", "mqtt:\n  enable: true\n  broker: tcp://localhost:1883\n  qos: 3\n", "mqtt.qos must be 0, 1 or 2"},
		{"KafkaNeedsBrokers", "kafka:\n  enable: true\n", "kafka.brokers is required when kafka.enable is true"},
		{"AMQPNeedsURL", "amqp:\n  enable: true\n", "amqp.url is required when amqp.enable is true"},
		{"FixLEDNeedsPin", "fix_led:\n  enable: true\n", "fix_led.pin must be > 0 when fix_led.enable is true"},
		{"WebLogLines", "web:\n  log_lines: -1\n", "web.log_lines must be > 0"},
		{"LogFormat", "log:\n  format: xml\n", "log.format must be 'console' or 'json'"},
		{"RecordNeedsPath", "capture:\n  record:\n    enable: true\n", "capture.record.path is required when capture.record.enable is true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, gpsOn+tc.extra)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ReplayRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "capture:\n  replay:\n    enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "capture.replay.path is required when capture.replay.enable is true")
}

func TestLoad_ReplayWithoutGPS(t *testing.T) {
	path := writeTempConfig(t, "capture:\n  replay:\n    enable: true\n    path: './x.log'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Capture.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Capture.Replay.Speed)
	}
}

func TestLoad_ReplayNegativeSpeedRejected(t *testing.T) {
	path := writeTempConfig(t, "capture:\n  replay:\n    enable: true\n    path: './x.log'\n    speed: -1\n")
	_, err := Load(path)
	requireErrEq(t, err, "capture.replay.speed must be > 0")
}

func TestLoad_RecordRequiresGPS(t *testing.T) {
	path := writeTempConfig(t, "capture:\n  record:\n    enable: true\n    path: './a.log'\n  replay:\n    enable: true\n    path: './b.log'\n")
	_, err := Load(path)
	requireErrEq(t, err, "capture.record requires gps.enable")
}

func TestLoad_RecordAndReplayMutuallyExclusive(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"capture:\n  record:\n    enable: true\n    path: './a.log'\n  replay:\n    enable: true\n    path: './b.log'\n")
	_, err := Load(path)
	requireErrEq(t, err, "capture.record and capture.replay cannot both be enabled")
}

func TestLoad_ParsesDurationsAndLists(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"  stale_after: 1500ms\n  strict_length: true\nkafka:\n  enable: true\n  brokers: ['k1:9092', 'k2:9092']\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.StaleAfter != 1500*time.Millisecond || !cfg.GPS.StrictLength {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers=%v", cfg.Kafka.Brokers)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"  mode: ubx\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.GPSConfig")
}
