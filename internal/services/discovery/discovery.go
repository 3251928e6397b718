// Package discovery builds the topic layout and the Home Assistant
// registration payload for the bridged sensor.
package discovery

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Availability payloads published on the status topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

var unsafeTopicChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Topics holds the full topic names of one sensor.
type Topics struct {
	Config     string
	Status     string
	State      string
	Attributes string
}

// Sensor identifies the bridged device and how it is announced.
type Sensor struct {
	DiscoveryPrefix string
	Host            string
	ObjectID        string
	Name            string
	Port            int
	ForceUpdate     bool
}

// HostPort returns the device address as host:port.
func (s Sensor) HostPort() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Prefix returns <discovery_prefix>/sensor/<host_port>/<object_id> with every
// non-alphanumeric character of host:port replaced by '_'.
func (s Sensor) Prefix() string {
	node := unsafeTopicChars.ReplaceAllString(s.HostPort(), "_")
	return strings.Join([]string{s.DiscoveryPrefix, "sensor", node, s.ObjectID}, "/")
}

// Topics returns the topic names under Prefix.
func (s Sensor) Topics() Topics {
	p := s.Prefix()
	return Topics{
		Config:     p + "/config",
		Status:     p + "/status",
		State:      p + "/state",
		Attributes: p + "/attributes",
	}
}

// Device describes the physical modem in the registration payload.
type Device struct {
	Connections  [][2]string `json:"connections"`
	Identifiers  string      `json:"identifiers"`
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
}

// Config is the retained registration message published to Topics.Config.
type Config struct {
	Device              Device `json:"device"`
	StateTopic          string `json:"state_topic"`
	Name                string `json:"name"`
	Icon                string `json:"icon"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	JSONAttributesTopic string `json:"json_attributes_topic"`
	UniqueID            string `json:"unique_id"`
	ForceUpdate         bool   `json:"force_update"`
}

// Config builds the registration payload.
func (s Sensor) Config() Config {
	t := s.Topics()
	hp := s.HostPort()
	return Config{
		StateTopic:          t.State,
		Name:                s.Name,
		Icon:                "mdi:wan",
		AvailabilityTopic:   t.Status,
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		JSONAttributesTopic: t.Attributes,
		ForceUpdate:         s.ForceUpdate,
		UniqueID:            hp,
		Device: Device{
			Connections:  [][2]string{{"tcp", hp}},
			Identifiers:  hp,
			Manufacturer: "ALLNET",
			Model:        "ALL0333B",
		},
	}
}
