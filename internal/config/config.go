package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel   zapcore.Level
	StecaGrid  StecaGridConfig  `mapstructure:"stecagrid"`
	MittFortum MittFortumConfig `mapstructure:"mittfortum"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	State      StateConfig      `mapstructure:"state"`
	Port       uint             `mapstructure:"port"`
	HttpLog    bool             `mapstructure:"http_log"`
}

type StecaGridConfig struct {
	Enable               bool
	Host                 string
	Port                 uint
	PollIntervalMillis   uint32       `mapstructure:"poll_interval_millis"`
	RequestTimeoutMillis uint32       `mapstructure:"request_timeout_millis"`
	Energy               EnergyConfig `mapstructure:"energy"`
}

type EnergyConfig struct {
	Measurement   string
	AllowNegative bool `mapstructure:"allow_negative"`
}

type MittFortumConfig struct {
	Enable             bool
	Username           string
	Password           string
	CustomerId         string `mapstructure:"customer_id"`
	MeteringPoint      string `mapstructure:"metering_point"`
	Resolution         string
	StreetAddress      string `mapstructure:"street_address"`
	City               string
	Currency           string
	AuthURL            string `mapstructure:"auth_url"`
	APIURL             string `mapstructure:"api_url"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type StateConfig struct {
	File string
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds of the enabled sources.
func (cfg *Config) Validate() error {
	if !cfg.StecaGrid.Enable && !cfg.MittFortum.Enable {
		return errors.New("at least one of stecagrid.enable or mittfortum.enable must be set")
	}
	if cfg.StecaGrid.Enable {
		if cfg.StecaGrid.Host == "" {
			return errors.New("config param stecagrid.host is required")
		}
		if cfg.StecaGrid.PollIntervalMillis < 1000 {
			return errors.New("config param stecagrid.poll_interval_millis should be >= 1000")
		}
		if cfg.StecaGrid.Energy.Measurement == "" {
			return errors.New("config param stecagrid.energy.measurement is required")
		}
		if cfg.State.File == "" {
			return errors.New("config param state.file is required")
		}
	}
	if cfg.MittFortum.Enable {
		if cfg.MittFortum.Username == "" || cfg.MittFortum.Password == "" {
			return errors.New("config params mittfortum.username and mittfortum.password are required")
		}
		if cfg.MittFortum.CustomerId == "" || cfg.MittFortum.MeteringPoint == "" {
			return errors.New("config params mittfortum.customer_id and mittfortum.metering_point are required")
		}
		if cfg.MittFortum.PollIntervalMillis < 60000 {
			return errors.New("config param mittfortum.poll_interval_millis should be >= 60000")
		}
	}
	return nil
}
