package util

import (
	"github.com/berfenger/energy2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		StecaGrid: config.StecaGridConfig{
			Enable:               true,
			Host:                 "-.-.-.-",
			Port:                 80,
			PollIntervalMillis:   1000,
			RequestTimeoutMillis: 2000,
			Energy: config.EnergyConfig{
				Measurement: "AC_Power",
			},
		},
		MittFortum: config.MittFortumConfig{
			Enable:             true,
			Username:           "user@example.com",
			Password:           "secret",
			CustomerId:         "C123",
			MeteringPoint:      "MP456",
			Resolution:         "hourly",
			Currency:           "SEK",
			PollIntervalMillis: 300000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "energy2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
		State: config.StateConfig{
			File: "energy2mqtt_state.yaml",
		},
		Port: 8080,
	}
}
