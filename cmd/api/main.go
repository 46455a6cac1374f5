package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/energy2mqtt/internal/adapter/actor"
	"github.com/berfenger/energy2mqtt/internal/adapter/store"
	"github.com/berfenger/energy2mqtt/internal/config"
	"github.com/berfenger/energy2mqtt/internal/core/actor"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/metrics"
	"github.com/berfenger/energy2mqtt/internal/server"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const mittFortumRequestTimeout = 30 * time.Second

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// 5 seconds to finish in-flight requests
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	stecaGridProv, err := stecaGridActorProvider(cfg, logger)
	if err != nil {
		logger.Fatal("stecagrid client", zap.Error(err))
	}
	mittFortumProv, err := mittFortumActorProvider(cfg, logger)
	if err != nil {
		logger.Fatal("mittfortum client", zap.Error(err))
	}

	energyStore := store.NewOsFileEnergyStore(cfg.State.File, logger)
	telemetry := metrics.NewTelemetry()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, energyStore, telemetry, stecaGridProv, mittFortumProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid, telemetry)
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => ENERGY2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ENERGY2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("energy2mqtt")
	// nested keys: stecagrid.host => ENERGY2MQTT_STECAGRID_HOST
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func stecaGridActorProvider(cfg *config.Config, logger *zap.Logger) (actor.StecaGridActorProvider, error) {
	if !cfg.StecaGrid.Enable {
		return nil, nil
	}
	timeout := time.Duration(cfg.StecaGrid.RequestTimeoutMillis) * time.Millisecond
	client, err := stecagrid.NewClient(cfg.StecaGrid.Host, cfg.StecaGrid.Port, timeout, logger)
	if err != nil {
		return nil, err
	}
	return func() *adactor.StecaGridActor {
		return adactor.NewStecaGridActor(client, timeout, logger)
	}, nil
}

func mittFortumActorProvider(cfg *config.Config, logger *zap.Logger) (actor.MittFortumActorProvider, error) {
	if !cfg.MittFortum.Enable {
		return nil, nil
	}
	fortum := cfg.MittFortum
	client, err := mittfortum.NewClient(fortum.Username, fortum.Password, fortum.CustomerId, fortum.MeteringPoint,
		mittfortum.WithAuthBase(fortum.AuthURL),
		mittfortum.WithAPIBase(fortum.APIURL),
		mittfortum.WithAddress(fortum.StreetAddress, fortum.City),
		mittfortum.WithResolution(fortum.Resolution),
		mittfortum.WithHTTPClient(&http.Client{Timeout: mittFortumRequestTimeout}),
		mittfortum.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return func() *adactor.MittFortumActor {
		return adactor.NewMittFortumActor(client, mittFortumRequestTimeout, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "energy2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("stecagrid.enable", false)
	viper.SetDefault("stecagrid.host", "")
	viper.SetDefault("stecagrid.port", 80)
	viper.SetDefault("stecagrid.poll_interval_millis", 5000)
	viper.SetDefault("stecagrid.request_timeout_millis", 3000)
	viper.SetDefault("stecagrid.energy.measurement", stecagrid.MEASUREMENT_AC_POWER)
	viper.SetDefault("stecagrid.energy.allow_negative", false)
	viper.SetDefault("mittfortum.enable", false)
	viper.SetDefault("mittfortum.username", "")
	viper.SetDefault("mittfortum.password", "")
	viper.SetDefault("mittfortum.customer_id", "")
	viper.SetDefault("mittfortum.metering_point", "")
	viper.SetDefault("mittfortum.street_address", "")
	viper.SetDefault("mittfortum.city", "")
	viper.SetDefault("mittfortum.auth_url", "")
	viper.SetDefault("mittfortum.api_url", "")
	viper.SetDefault("mittfortum.resolution", string(mittfortum.RESOLUTION_HOURLY))
	viper.SetDefault("mittfortum.currency", "SEK")
	viper.SetDefault("mittfortum.poll_interval_millis", 300000)
	viper.SetDefault("state.file", "energy2mqtt_state.yaml")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.MittFortum.Username = "*redacted*"
	cfg.MittFortum.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
