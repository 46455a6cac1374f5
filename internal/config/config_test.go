package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Energy2MQTT")
	assert.NoError(err)
	assert.Equal("energy2mqtt", topic)

	_, err = CheckMQTTTopic("energy/mqtt")
	assert.Error(err)

	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestValidate(t *testing.T) {

	assert := assert.New(t)

	cfg := Config{}
	assert.Error(cfg.Validate(), "no source enabled")

	cfg.StecaGrid = StecaGridConfig{
		Enable:             true,
		Host:               "192.168.1.50",
		PollIntervalMillis: 5000,
		Energy:             EnergyConfig{Measurement: "AC_Power"},
	}
	assert.Error(cfg.Validate(), "missing state file")

	cfg.State.File = "state.yaml"
	assert.NoError(cfg.Validate())

	cfg.StecaGrid.PollIntervalMillis = 200
	assert.Error(cfg.Validate())
	cfg.StecaGrid.PollIntervalMillis = 5000

	cfg.MittFortum = MittFortumConfig{
		Enable:             true,
		Username:           "user",
		Password:           "secret",
		CustomerId:         "C1",
		PollIntervalMillis: 300000,
	}
	assert.Error(cfg.Validate(), "missing metering point")

	cfg.MittFortum.MeteringPoint = "MP1"
	assert.NoError(cfg.Validate())
}
