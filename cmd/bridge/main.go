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
	"syscall"
	"time"

	adactor "github.com/arvoh/hass2vpp/internal/adapter/actor"
	"github.com/arvoh/hass2vpp/internal/config"
	"github.com/arvoh/hass2vpp/internal/core/actor"
	"github.com/arvoh/hass2vpp/internal/core/port"
	"github.com/arvoh/hass2vpp/internal/core/service"
	"github.com/arvoh/hass2vpp/internal/hass"
	"github.com/arvoh/hass2vpp/internal/server"
	"github.com/arvoh/hass2vpp/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, hassActorProvider(cfg, logger), vppMQTTActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => HASS2VPP_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("HASS2VPP_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("hass2vpp")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
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

	// parse log level
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

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.VPPMQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.VPPMQTT.BaseTopic = baseTopic

	// check and fix unit id
	unitId, err := config.CheckMQTTTopic(cfg.VPPMQTT.UnitId)
	if err != nil {
		return nil, errors.New("invalid unit id. can only contain letters, numbers and underscores")
	}
	cfg.VPPMQTT.UnitId = unitId

	// check bounds
	if cfg.HomeAssistant.URL == "" {
		return nil, errors.New("config param home_assistant.url is required")
	}
	if cfg.HomeAssistant.Token == "" {
		return nil, errors.New("config param home_assistant.token is required")
	}
	if cfg.Inverter.DeviceId == "" {
		return nil, errors.New("config param inverter.device_id is required")
	}
	if !service.SupportedInverterModel(cfg.Inverter.Model) {
		return nil, fmt.Errorf("config param inverter.model %q is not supported", cfg.Inverter.Model)
	}
	if cfg.Telemetry.EnergyIntervalMillis < 1000 {
		return nil, errors.New("config param telemetry.energy_interval_millis should be >= 1000")
	}
	if cfg.Telemetry.MetricsIntervalMillis < 1000 {
		return nil, errors.New("config param telemetry.metrics_interval_millis should be >= 1000")
	}

	return &cfg, nil
}

func hassActorProvider(cfg *config.Config, logger *zap.Logger) actor.HassActorProvider {
	clientProvider := func(onConnectionLost func(error)) port.RegistryClient {
		return hass.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, onConnectionLost, logger)
	}
	sourceProvider := func(client port.RegistryClient) (port.InverterDataSource, error) {
		return service.NewInverterDataSource(cfg.Inverter.Model, cfg.Inverter.DeviceId, client, client, client, logger)
	}
	return func() *adactor.HassActor {
		return adactor.NewHassActor(clientProvider, sourceProvider, logger)
	}
}

func vppMQTTActorProvider(cfg *config.Config, logger *zap.Logger) actor.VPPMQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.VPPMQTTActor {
		return adactor.NewVPPMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("inverter.model", "huawei")
	viper.SetDefault("vpp_mqtt.port", 1883)
	viper.SetDefault("vpp_mqtt.base_topic", "vpp")
	viper.SetDefault("telemetry.energy_interval_millis", 10000)
	viper.SetDefault("telemetry.metrics_interval_millis", 10000)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.HomeAssistant.Token = "*redacted*"
	cfg.VPPMQTT.Username = "*redacted*"
	cfg.VPPMQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
