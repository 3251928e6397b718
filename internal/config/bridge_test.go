package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func d(sec int) time.Duration { return time.Duration(sec) * time.Second }

var bridgeEnv = []string{
	"CONFIG", "DEVICE_HOST", "DEVICE_PORT", "DEVICE_USERNAME", "DEVICE_PASSWORD",
	"DEVICE_INTERFACE", "DEVICE_READ_TIMEOUT", "BUS_KIND", "MQTT_BROKER", "MQTT_PORT",
	"MQTT_KEEPALIVE", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_CLIENT_ID",
	"MQTT_DISCOVERY_PREFIX", "NATS_URL", "OBJECT_ID", "NAME", "FORCE_UPDATE",
	"UPDATE_INTERVAL", "PRECISION", "HTTP_ADDRESS", "STORE_FILE", "DATABASE_DSN",
	"RESTORE", "AUDIT_FILE", "AUDIT_URL", "AUDIT_KEY", "LOG_LEVEL",
}

func clearBridgeEnv(t *testing.T) {
	t.Helper()
	for _, k := range bridgeEnv {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
device:
  host: 10.0.0.1
  port: 2323
  password: secret
  read_timeout: 45
mqtt:
  broker: broker.lan
  discovery_prefix: ha
object_id: modem
name: Uplink
force_update: true
sensor:
  update_interval: 30
  precision: 2
store:
  file: /var/lib/dslbridge/snapshot.json
audit:
  url: http://audit.lan/changes
`

func TestLoadBridgeConfig_Defaults(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	got, err := LoadBridgeConfig(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Device.Host != "172.16.1.254" || got.Device.Port != 23 {
		t.Errorf("device: got %s:%d", got.Device.Host, got.Device.Port)
	}
	if got.Device.Username != "root" || got.Device.Password != "admin" || got.Device.Interface != "nas0" {
		t.Errorf("device credentials: got %+v", got.Device)
	}
	if got.Device.ReadTimeout.Duration != 0 {
		t.Errorf("ReadTimeout: want 0, got %v", got.Device.ReadTimeout)
	}
	if got.Bus.Kind != BusMQTT {
		t.Errorf("Bus.Kind: want %q, got %q", BusMQTT, got.Bus.Kind)
	}
	want := MQTTConfig{
		Broker:          "127.0.0.1",
		Port:            1883,
		KeepAlive:       60,
		Username:        "homeassistant",
		DiscoveryPrefix: "homeassistant",
	}
	if got.MQTT != want {
		t.Errorf("MQTT: want %+v, got %+v", want, got.MQTT)
	}
	if got.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL: got %q", got.NATS.URL)
	}
	if got.ObjectID != "all0333b" || got.Name != "DSL Upstream" || got.ForceUpdate {
		t.Errorf("sensor identity: got %q %q %v", got.ObjectID, got.Name, got.ForceUpdate)
	}
	if got.Sensor.UpdateInterval.Duration != d(20) || got.Sensor.Precision != 0 {
		t.Errorf("Sensor: got %+v", got.Sensor)
	}
	if got.HTTP.Address != "" || got.Store != (StoreConfig{}) || got.Audit != (AuditConfig{}) {
		t.Errorf("optional surfaces should be disabled: %+v %+v %+v", got.HTTP, got.Store, got.Audit)
	}
	if got.Log.Level != "info" {
		t.Errorf("Log.Level: got %q", got.Log.Level)
	}
}

func TestLoadBridgeConfig_Layers(t *testing.T) {
	tests := []struct {
		env   map[string]string
		check func(t *testing.T, c BridgeConfig)
		name  string
		args  []string
	}{
		{
			name: "yaml overlays defaults",
			check: func(t *testing.T, c BridgeConfig) {
				if c.Device.Host != "10.0.0.1" || c.Device.Port != 2323 || c.Device.Password != "secret" {
					t.Errorf("device: %+v", c.Device)
				}
				if c.Device.Username != "root" {
					t.Errorf("unset yaml key should keep default, got %q", c.Device.Username)
				}
				if c.Device.ReadTimeout.Duration != d(45) {
					t.Errorf("ReadTimeout: got %v", c.Device.ReadTimeout)
				}
				if c.MQTT.Broker != "broker.lan" || c.MQTT.DiscoveryPrefix != "ha" || c.MQTT.Port != 1883 {
					t.Errorf("mqtt: %+v", c.MQTT)
				}
				if c.ObjectID != "modem" || c.Name != "Uplink" || !c.ForceUpdate {
					t.Errorf("identity: %q %q %v", c.ObjectID, c.Name, c.ForceUpdate)
				}
				if c.Sensor.UpdateInterval.Duration != d(30) || c.Sensor.Precision != 2 {
					t.Errorf("sensor: %+v", c.Sensor)
				}
				if c.Store.File != "/var/lib/dslbridge/snapshot.json" {
					t.Errorf("store: %+v", c.Store)
				}
				if c.Audit.URL != "http://audit.lan/changes" || c.Audit.File != "" {
					t.Errorf("audit: %+v", c.Audit)
				}
			},
		},
		{
			name: "flags override yaml",
			args: []string{"-host", "192.168.1.1", "-port", "23", "-i", "5", "-iface", "ptm0", "-http", "9090", "-r", "-audit-file", "/tmp/changes.log"},
			check: func(t *testing.T, c BridgeConfig) {
				if c.Device.Host != "192.168.1.1" || c.Device.Port != 23 || c.Device.Interface != "ptm0" {
					t.Errorf("device: %+v", c.Device)
				}
				if c.Sensor.UpdateInterval.Duration != d(5) {
					t.Errorf("interval: got %v", c.Sensor.UpdateInterval)
				}
				if c.HTTP.Address != ":9090" {
					t.Errorf("http: got %q", c.HTTP.Address)
				}
				if !c.Store.Restore {
					t.Error("restore flag ignored")
				}
				if c.Audit.File != "/tmp/changes.log" {
					t.Errorf("audit file: got %q", c.Audit.File)
				}
			},
		},
		{
			name: "explicit empty flag clears yaml value",
			args: []string{"-f", "", "-i", "1m30s", "-r=false"},
			check: func(t *testing.T, c BridgeConfig) {
				if c.Store.File != "" {
					t.Errorf("store file: got %q", c.Store.File)
				}
				if c.Sensor.UpdateInterval.Duration != 90*time.Second {
					t.Errorf("interval: got %v", c.Sensor.UpdateInterval)
				}
				if c.Store.Restore {
					t.Error("restore should stay false")
				}
			},
		},
		{
			name: "env overrides flags and yaml",
			args: []string{"-host", "192.168.1.1", "-i", "5", "-bus", "mqtt"},
			env: map[string]string{
				"DEVICE_HOST":     "modem.lan",
				"UPDATE_INTERVAL": "1m",
				"BUS_KIND":        "NATS",
				"NATS_URL":        "nats://bus:4222",
				"PRECISION":       "1",
				"FORCE_UPDATE":    "off",
				"DATABASE_DSN":    "postgres://u@db/dsl",
				"AUDIT_KEY":       "s3cret",
			},
			check: func(t *testing.T, c BridgeConfig) {
				if c.Device.Host != "modem.lan" {
					t.Errorf("host: got %q", c.Device.Host)
				}
				if c.Sensor.UpdateInterval.Duration != time.Minute || c.Sensor.Precision != 1 {
					t.Errorf("sensor: %+v", c.Sensor)
				}
				if c.Bus.Kind != BusNATS || c.NATS.URL != "nats://bus:4222" {
					t.Errorf("bus: %+v %+v", c.Bus, c.NATS)
				}
				if c.ForceUpdate {
					t.Error("FORCE_UPDATE=off should win over yaml true")
				}
				if c.Store.DSN != "postgres://u@db/dsl" {
					t.Errorf("dsn: got %q", c.Store.DSN)
				}
				if c.Audit.Key != "s3cret" {
					t.Errorf("audit key: got %q", c.Audit.Key)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBridgeEnv(t)
			t.Setenv("CONFIG", writeConfig(t, sampleYAML))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := LoadBridgeConfig(tt.args, os.Stderr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestLoadBridgeConfig_Errors(t *testing.T) {
	tests := []struct {
		env       map[string]string
		name      string
		yaml      string
		wantError string
		args      []string
	}{
		{
			name:      "port above range",
			env:       map[string]string{"DEVICE_PORT": "70000"},
			wantError: "device.port out of range",
		},
		{
			name:      "zero interval",
			yaml:      "sensor:\n  update_interval: 0\n",
			wantError: "update_interval must be positive",
		},
		{
			name:      "precision too high",
			env:       map[string]string{"PRECISION": "7"},
			wantError: "precision must be in 0..6",
		},
		{
			name:      "unknown bus",
			args:      []string{"-bus", "amqp"},
			wantError: `unknown bus.kind "amqp"`,
		},
		{
			name:      "bad duration in yaml",
			yaml:      "sensor:\n  update_interval: soon\n",
			wantError: "invalid duration",
		},
		{
			name:      "broken yaml",
			yaml:      "device: [\n",
			wantError: "parse config",
		},
		{
			name:      "flag parse error",
			args:      []string{"-port", "oops"},
			wantError: "invalid value",
		},
		{
			name:      "zero interval flag",
			args:      []string{"-i", "0"},
			wantError: "update_interval must be positive",
		},
		{
			name:      "bad interval flag",
			args:      []string{"-i", "soon"},
			wantError: `invalid value "soon" for flag -i`,
		},
		{
			name:      "env integer",
			env:       map[string]string{"MQTT_PORT": "many"},
			wantError: `invalid value "many" for MQTT_PORT`,
		},
		{
			name:      "env boolean",
			env:       map[string]string{"RESTORE": "maybe"},
			wantError: `invalid value "maybe" for RESTORE`,
		},
		{
			name:      "env duration",
			env:       map[string]string{"DEVICE_READ_TIMEOUT": "later"},
			wantError: "invalid duration",
		},
		{
			name:      "unknown flag",
			args:      []string{"-verbose"},
			wantError: "flag provided but not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBridgeEnv(t)
			t.Setenv("CONFIG", writeConfig(t, tt.yaml))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadBridgeConfig(tt.args, nil)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Fatalf("expected error %q, got %v", tt.wantError, err)
			}
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	cases := map[string]time.Duration{
		"v: 20":        d(20),
		"v: 1m30s":     90 * time.Second,
		"v: \"250ms\"": 250 * time.Millisecond,
		"v: 0":         0,
	}
	for in, want := range cases {
		var out struct {
			V Duration `yaml:"v"`
		}
		if err := yaml.Unmarshal([]byte(in), &out); err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if out.V.Duration != want {
			t.Errorf("%q: want %v, got %v", in, want, out.V.Duration)
		}
	}
}

func TestNormalizeListenAddress(t *testing.T) {
	cases := map[string]string{
		"8080":           ":8080",
		"  :9090 ":       ":9090",
		"127.0.0.1:8080": "127.0.0.1:8080",
	}
	for in, want := range cases {
		if got := normalizeListenAddress(in); got != want {
			t.Errorf("normalizeListenAddress(%q): want %q, got %q", in, want, got)
		}
	}
}
