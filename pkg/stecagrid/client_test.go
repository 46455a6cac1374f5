package stecagrid_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const measurementsXML = `<?xml version="1.0" encoding="UTF-8"?>
<root>
  <Device Name="StecaGrid 3010" NominalPower="3000" Type="Inverter" Serial="748611XC001234567" BusAddress="1" NetBiosName="INV001234567" IpAddress="192.168.1.50" DateTime="2024-06-01T12:00:00">
    <Measurements>
      <Measurement Value="231.4" Unit="V" Type="AC_Voltage"/>
      <Measurement Value="4.12" Unit="A" Type="AC_Current"/>
      <Measurement Value="952.6" Unit="W" Type="AC_Power"/>
      <Measurement Value="50.01" Unit="Hz" Type="AC_Frequency"/>
      <Measurement Unit="V" Type="DC_Voltage"/>
      <Measurement Value="41.5" Unit="°C" Type="Temp"/>
    </Measurements>
  </Device>
</root>`

func setup(t *testing.T, handler http.HandlerFunc) *stecagrid.Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return stecagrid.NewClientWithBaseURL(server.URL, server.Client(), zap.NewNop())
}

func xmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/measurements.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = fmt.Fprint(w, body)
	}
}

func TestGetMeasurements(t *testing.T) {

	require := require.New(t)

	client := setup(t, xmlHandler(measurementsXML))

	measurements, err := client.GetMeasurements(context.Background())
	require.NoError(err)
	require.Len(measurements, 6)
	require.Equal([]string{"AC_Voltage", "AC_Current", "AC_Power", "AC_Frequency", "DC_Voltage", "Temp"}, measurements.Types())

	power, ok := measurements.Get(stecagrid.MEASUREMENT_AC_POWER)
	require.True(ok)
	require.NotNil(power.Value)
	assert.Equal(t, "952.6", *power.Value)
	assert.Equal(t, "W", power.Unit)

	dcVoltage, ok := measurements.Get(stecagrid.MEASUREMENT_DC_VOLTAGE)
	require.True(ok)
	assert.Nil(t, dcVoltage.Value, "missing value attribute")

	_, ok = measurements.Get("Unknown")
	assert.False(t, ok)
}

func TestGetInfo(t *testing.T) {

	client := setup(t, xmlHandler(measurementsXML))

	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "StecaGrid 3010", info.Name)
	assert.Equal(t, "748611XC001234567", info.Serial)
	assert.Equal(t, "3000", info.NominalPower)
}

func TestValidateConnection(t *testing.T) {

	assert := assert.New(t)

	ok, err := setup(t, xmlHandler(measurementsXML)).ValidateConnection(context.Background())
	assert.NoError(err)
	assert.True(ok)

	other := `<root><Device Name="Fronius Primo"><Measurements/></Device></root>`
	ok, err = setup(t, xmlHandler(other)).ValidateConnection(context.Background())
	assert.NoError(err)
	assert.False(ok)

	_, err = setup(t, xmlHandler(other)).GetInfo(context.Background())
	assert.ErrorIs(err, stecagrid.ErrNotStecaGrid)
}

func TestFetchErrors(t *testing.T) {

	assert := assert.New(t)

	client := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.GetMeasurements(context.Background())
	assert.ErrorContains(err, "unexpected status 500")

	client = setup(t, xmlHandler("<root><Device"))
	_, err = client.GetMeasurements(context.Background())
	assert.ErrorContains(err, "decode")

	client = setup(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetMeasurements(ctx)
	assert.ErrorIs(err, context.DeadlineExceeded)
}

func TestNewClient(t *testing.T) {

	_, err := stecagrid.NewClient(" ", 80, time.Second, zap.NewNop())
	assert.Error(t, err)

	client, err := stecagrid.NewClient("192.168.1.50", 0, time.Second, zap.NewNop())
	assert.NoError(t, err)
	assert.NotNil(t, client)
}
