package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/energy2mqtt/pkg/energy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SOURCE_STECAGRID  = "stecagrid"
	SOURCE_MITTFORTUM = "mittfortum"
)

// Telemetry holds the bridge's own collectors on a dedicated registry.
type Telemetry struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
	measurement    *prometheus.GaugeVec
	energyWh       *prometheus.GaugeVec
	ignoredSamples *prometheus.CounterVec
	consumptionKWh prometheus.Gauge
	cost           prometheus.Gauge
}

func NewTelemetry() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy2mqtt_polls_total",
			Help: "Polls per source and result",
		}, []string{"source", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energy2mqtt_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll per source",
		}, []string{"source"}),
		measurement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energy2mqtt_stecagrid_measurement",
			Help: "Last StecaGrid measurement value",
		}, []string{"type", "unit"}),
		energyWh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energy2mqtt_energy_wh",
			Help: "Cumulative integrated energy in watt-hours",
		}, []string{"sensor"}),
		ignoredSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy2mqtt_ignored_samples_total",
			Help: "Power samples skipped by the energy accumulator",
		}, []string{"sensor", "reason"}),
		consumptionKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy2mqtt_mittfortum_consumption_kwh",
			Help: "Last reported MittFortum consumption in kWh",
		}),
		cost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy2mqtt_mittfortum_cost",
			Help: "Last reported MittFortum cost",
		}),
	}
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.polls,
		t.lastSuccess,
		t.measurement,
		t.energyWh,
		t.ignoredSamples,
		t.consumptionKWh,
		t.cost,
	)
	return t
}

func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

func (t *Telemetry) ObservePoll(source string, err error, at time.Time) {
	if err != nil {
		t.polls.WithLabelValues(source, "error").Inc()
		return
	}
	t.polls.WithLabelValues(source, "ok").Inc()
	t.lastSuccess.WithLabelValues(source).Set(float64(at.Unix()))
}

func (t *Telemetry) SetMeasurement(measurementType, unit string, value float64) {
	t.measurement.WithLabelValues(measurementType, unit).Set(value)
}

func (t *Telemetry) SetEnergy(sensorId string, wh float64) {
	t.energyWh.WithLabelValues(sensorId).Set(wh)
}

// ObserveSample counts samples the accumulator ignores.
func (t *Telemetry) ObserveSample(sensorId string, sample energy.Sample) {
	switch err := energy.Classify(sample); {
	case errors.Is(err, energy.ErrMissingSample):
		t.ignoredSamples.WithLabelValues(sensorId, "missing").Inc()
	case errors.Is(err, energy.ErrUnparsableSample):
		t.ignoredSamples.WithLabelValues(sensorId, "unparsable").Inc()
	}
}

func (t *Telemetry) SetConsumption(kwh, cost float64) {
	t.consumptionKWh.Set(kwh)
	t.cost.Set(cost)
}
