package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vshulcz/dslbridge/internal/misc"
)

const (
	defaultConfigFile      = "config.yml"
	defaultDeviceHost      = "172.16.1.254"
	defaultDevicePort      = 23
	defaultDeviceUser      = "root"
	defaultDevicePassword  = "admin"
	defaultInterface       = "nas0"
	defaultMQTTBroker      = "127.0.0.1"
	defaultMQTTPort        = 1883
	defaultMQTTKeepAlive   = 60
	defaultMQTTUser        = "homeassistant"
	defaultDiscoveryPrefix = "homeassistant"
	defaultNATSURL         = "nats://127.0.0.1:4222"
	defaultObjectID        = "all0333b"
	defaultName            = "DSL Upstream"
	defaultUpdateInterval  = 20
	defaultLogLevel        = "info"

	maxPrecision = 6
)

const (
	BusMQTT = "mqtt"
	BusNATS = "nats"
)

// Duration decodes either plain seconds (20) or Go duration syntax ("1m30s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := misc.ParseSeconds(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Duration = parsed
	return nil
}

type DeviceConfig struct {
	Host        string   `yaml:"host"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	Interface   string   `yaml:"interface"`
	Port        int      `yaml:"port"`
	ReadTimeout Duration `yaml:"read_timeout"`
}

type BusConfig struct {
	Kind string `yaml:"kind"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Port            int    `yaml:"port"`
	KeepAlive       int    `yaml:"keepalive"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type SensorConfig struct {
	UpdateInterval Duration `yaml:"update_interval"`
	Precision      int      `yaml:"precision"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type StoreConfig struct {
	File    string `yaml:"file"`
	DSN     string `yaml:"dsn"`
	Restore bool   `yaml:"restore"`
}

// AuditConfig enables the change log sinks. Empty values disable them.
type AuditConfig struct {
	File string `yaml:"file"`
	URL  string `yaml:"url"`
	Key  string `yaml:"key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BridgeConfig struct {
	Device      DeviceConfig `yaml:"device"`
	Bus         BusConfig    `yaml:"bus"`
	MQTT        MQTTConfig   `yaml:"mqtt"`
	NATS        NATSConfig   `yaml:"nats"`
	Sensor      SensorConfig `yaml:"sensor"`
	HTTP        HTTPConfig   `yaml:"http"`
	Store       StoreConfig  `yaml:"store"`
	Audit       AuditConfig  `yaml:"audit"`
	Log         LogConfig    `yaml:"log"`
	ObjectID    string       `yaml:"object_id"`
	Name        string       `yaml:"name"`
	ForceUpdate bool         `yaml:"force_update"`
}

func defaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Device: DeviceConfig{
			Host:      defaultDeviceHost,
			Port:      defaultDevicePort,
			Username:  defaultDeviceUser,
			Password:  defaultDevicePassword,
			Interface: defaultInterface,
		},
		Bus: BusConfig{Kind: BusMQTT},
		MQTT: MQTTConfig{
			Broker:          defaultMQTTBroker,
			Port:            defaultMQTTPort,
			KeepAlive:       defaultMQTTKeepAlive,
			Username:        defaultMQTTUser,
			DiscoveryPrefix: defaultDiscoveryPrefix,
		},
		NATS:     NATSConfig{URL: defaultNATSURL},
		Sensor:   SensorConfig{UpdateInterval: Duration{defaultUpdateInterval * time.Second}},
		Log:      LogConfig{Level: defaultLogLevel},
		ObjectID: defaultObjectID,
		Name:     defaultName,
	}
}

func bridgeSettings() []setting {
	return []setting{
		stringSetting("host", "DEVICE_HOST", fmt.Sprintf("DEVICE_HOST, default: %s", defaultDeviceHost),
			func(c *BridgeConfig) *string { return &c.Device.Host }),
		intSetting("port", "DEVICE_PORT", fmt.Sprintf("DEVICE_PORT, default: %d", defaultDevicePort),
			func(c *BridgeConfig) *int { return &c.Device.Port }),
		stringSetting("user", "DEVICE_USERNAME", fmt.Sprintf("DEVICE_USERNAME, default: %s", defaultDeviceUser),
			func(c *BridgeConfig) *string { return &c.Device.Username }),
		stringSetting("password", "DEVICE_PASSWORD", "DEVICE_PASSWORD",
			func(c *BridgeConfig) *string { return &c.Device.Password }),
		stringSetting("iface", "DEVICE_INTERFACE", fmt.Sprintf("DEVICE_INTERFACE, default: %s", defaultInterface),
			func(c *BridgeConfig) *string { return &c.Device.Interface }),
		durationSetting("", "DEVICE_READ_TIMEOUT", "",
			func(c *BridgeConfig) *Duration { return &c.Device.ReadTimeout }),

		stringSetting("bus", "BUS_KIND", fmt.Sprintf("BUS_KIND (%s|%s), default: %s", BusMQTT, BusNATS, BusMQTT),
			func(c *BridgeConfig) *string { return &c.Bus.Kind }),

		stringSetting("broker", "MQTT_BROKER", fmt.Sprintf("MQTT_BROKER, default: %s", defaultMQTTBroker),
			func(c *BridgeConfig) *string { return &c.MQTT.Broker }),
		intSetting("", "MQTT_PORT", "", func(c *BridgeConfig) *int { return &c.MQTT.Port }),
		intSetting("", "MQTT_KEEPALIVE", "", func(c *BridgeConfig) *int { return &c.MQTT.KeepAlive }),
		stringSetting("", "MQTT_USERNAME", "", func(c *BridgeConfig) *string { return &c.MQTT.Username }),
		stringSetting("", "MQTT_PASSWORD", "", func(c *BridgeConfig) *string { return &c.MQTT.Password }),
		stringSetting("", "MQTT_CLIENT_ID", "", func(c *BridgeConfig) *string { return &c.MQTT.ClientID }),
		stringSetting("", "MQTT_DISCOVERY_PREFIX", "", func(c *BridgeConfig) *string { return &c.MQTT.DiscoveryPrefix }),

		stringSetting("", "NATS_URL", "", func(c *BridgeConfig) *string { return &c.NATS.URL }),

		stringSetting("", "OBJECT_ID", "", func(c *BridgeConfig) *string { return &c.ObjectID }),
		stringSetting("", "NAME", "", func(c *BridgeConfig) *string { return &c.Name }),
		boolSetting("", "FORCE_UPDATE", "", func(c *BridgeConfig) *bool { return &c.ForceUpdate }),

		durationSetting("i", "UPDATE_INTERVAL", fmt.Sprintf("UPDATE_INTERVAL in seconds or Go syntax, default: %d", defaultUpdateInterval),
			func(c *BridgeConfig) *Duration { return &c.Sensor.UpdateInterval }),
		intSetting("", "PRECISION", "", func(c *BridgeConfig) *int { return &c.Sensor.Precision }),

		stringSetting("http", "HTTP_ADDRESS", "HTTP_ADDRESS of the status server, empty disables it",
			func(c *BridgeConfig) *string { return &c.HTTP.Address }),

		stringSetting("f", "STORE_FILE", "STORE_FILE snapshot path",
			func(c *BridgeConfig) *string { return &c.Store.File }),
		stringSetting("d", "DATABASE_DSN", "DATABASE_DSN for Postgres",
			func(c *BridgeConfig) *string { return &c.Store.DSN }),
		boolSetting("r", "RESTORE", "RESTORE the last snapshot on start",
			func(c *BridgeConfig) *bool { return &c.Store.Restore }),

		stringSetting("audit-file", "AUDIT_FILE", "AUDIT_FILE change log path",
			func(c *BridgeConfig) *string { return &c.Audit.File }),
		stringSetting("audit-url", "AUDIT_URL", "AUDIT_URL change webhook",
			func(c *BridgeConfig) *string { return &c.Audit.URL }),
		stringSetting("k", "AUDIT_KEY", "AUDIT_KEY signs webhook bodies",
			func(c *BridgeConfig) *string { return &c.Audit.Key }),

		stringSetting("", "LOG_LEVEL", "", func(c *BridgeConfig) *string { return &c.Log.Level }),
	}
}

// ENV > CLI > YAML file > defaults
func LoadBridgeConfig(args []string, out io.Writer) (BridgeConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fset := flag.NewFlagSet("bridge", flag.ContinueOnError)
	fset.SetOutput(out)

	settings := bridgeSettings()
	fileOpt := fset.String("c", defaultConfigFile, "CONFIG file path")
	values := register(fset, settings)

	if err := fset.Parse(args); err != nil {
		return BridgeConfig{}, err
	}

	cfg := defaultBridgeConfig()
	path := *fileOpt
	if v, ok := misc.LookupEnv("CONFIG"); ok {
		path = v
	}
	if err := loadFile(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	if err := apply(&cfg, fset, values, settings); err != nil {
		return BridgeConfig{}, err
	}

	cfg.Bus.Kind = strings.ToLower(strings.TrimSpace(cfg.Bus.Kind))
	if cfg.HTTP.Address != "" {
		cfg.HTTP.Address = normalizeListenAddress(cfg.HTTP.Address)
	}

	if err := cfg.Validate(); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// loadFile overlays the YAML document at path onto cfg. A missing file is not an error.
func loadFile(path string, cfg *BridgeConfig) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c BridgeConfig) Validate() error {
	if err := validPort("device.port", c.Device.Port); err != nil {
		return err
	}
	if strings.TrimSpace(c.Device.Host) == "" {
		return errors.New("device.host is required")
	}
	if strings.TrimSpace(c.Device.Interface) == "" {
		return errors.New("device.interface is required")
	}
	if c.Device.ReadTimeout.Duration < 0 {
		return fmt.Errorf("device.read_timeout must not be negative: %s", c.Device.ReadTimeout)
	}
	if c.Sensor.UpdateInterval.Duration <= 0 {
		return fmt.Errorf("sensor.update_interval must be positive: %s", c.Sensor.UpdateInterval)
	}
	if c.Sensor.Precision < 0 || c.Sensor.Precision > maxPrecision {
		return fmt.Errorf("sensor.precision must be in 0..%d: %d", maxPrecision, c.Sensor.Precision)
	}
	switch c.Bus.Kind {
	case BusMQTT:
		if err := validPort("mqtt.port", c.MQTT.Port); err != nil {
			return err
		}
		if c.MQTT.KeepAlive <= 0 {
			return fmt.Errorf("mqtt.keepalive must be positive: %d", c.MQTT.KeepAlive)
		}
	case BusNATS:
		if strings.TrimSpace(c.NATS.URL) == "" {
			return errors.New("nats.url is required")
		}
	default:
		return fmt.Errorf("unknown bus.kind %q", c.Bus.Kind)
	}
	if strings.TrimSpace(c.ObjectID) == "" {
		return errors.New("object_id is required")
	}
	return nil
}

func validPort(name string, p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("%s out of range: %d", name, p)
	}
	return nil
}

func normalizeListenAddress(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
