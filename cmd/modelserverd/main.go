package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelserverd/internal/config"
	"modelserverd/internal/grpcapi"
	"modelserverd/internal/httpapi"
	"modelserverd/internal/metrics"
	"modelserverd/internal/runtime"
	"modelserverd/internal/stateful"
	"modelserverd/internal/sweeper"
	"modelserverd/internal/validate"
	"modelserverd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, addrOverride, grpcAddrOverride, logLevel string

	cmd := &cobra.Command{
		Use:   "modelserverd",
		Short: "Stateful inference serving engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addrOverride, grpcAddrOverride, logLevel)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (yaml/json/toml)")
	cmd.Flags().StringVar(&addrOverride, "addr", "", "REST listen address, overrides the config file")
	cmd.Flags().StringVar(&grpcAddrOverride, "grpc-addr", "", "gRPC listen address, overrides the config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "zerolog level: debug, info, warn, error")
	return cmd
}

func run(configPath, addrOverride, grpcAddrOverride, logLevel string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	httpapi.SetLogger(logger)

	var cfg config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	addr := firstNonEmpty(addrOverride, cfg.Addr, ":8080")
	grpcAddr := firstNonEmpty(grpcAddrOverride, cfg.GRPCAddr, ":8081")

	if len(cfg.PipelineConfigList) > 0 {
		logger.Warn().Int("count", len(cfg.PipelineConfigList)).Msg("pipeline_config_list entries are round-tripped but not executed")
	}

	reg := metrics.New(cfg.Monitoring.Metrics.Enable, cfg.Monitoring.Metrics.MetricsList)

	pollInterval := time.Duration(cfg.SequenceCleanup.PollIntervalSeconds) * time.Second
	maxIdle := time.Duration(cfg.SequenceCleanup.MaxIdleSeconds) * time.Second
	if maxIdle <= 0 {
		maxIdle = 10 * time.Minute
	}
	sw := sweeper.New(pollInterval, maxIdle)

	engine := runtime.New()
	models := stateful.NewModelSet()
	grpcSrv := grpcapi.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw.OnSweep(func(name string, version int64, evicted int) {
		logger.Info().Str("model", name).Int64("version", version).Int("evicted", evicted).Msg("swept idle sequences")
	})

	for _, entry := range cfg.ModelConfigList {
		mc := entry.Config
		const defaultVersion = 1
		inst, err := stateful.New(ctx, mc.Name, defaultVersion, stateful.Config{
			Nireq:                    mc.Nireq,
			MaxSequenceNumber:        mc.MaxSequenceNumber,
			LowLatencyTransformation: mc.LowLatencyTransformation,
			IdleSequenceCleanup:      mc.IdleSequenceCleanup,
			DeclaredInputs:           declaredInputs(mc.Inputs),
			PluginConfig:             mc.PluginConfig,
		}, runtime.LoadOptions{
			BasePath:                 mc.BasePath,
			PluginConfig:             mc.PluginConfig,
			LowLatencyTransformation: mc.LowLatencyTransformation,
		}, engine, reg, sw)
		if err != nil {
			logger.Error().Err(err).Str("model", mc.Name).Msg("failed to load model")
			continue
		}
		models.Put(inst)
		grpcSrv.SetModelServing(mc.Name, defaultVersion, true)
		logger.Info().Str("model", mc.Name).Int64("version", defaultVersion).Msg("model loaded")
	}

	svc := httpapi.NewModelService(models, reg, time.Now())
	httpSrv := &http.Server{Addr: addr, Handler: httpapi.NewMux(svc)}

	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}

	go sw.Run(ctx)
	go func() {
		logger.Info().Str("addr", addr).Msg("REST server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("REST server failed")
		}
	}()
	go func() {
		logger.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcSrv.Serve(ctx, grpcListener); err != nil {
			logger.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutdown signal received")

	grpcSrv.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("REST graceful shutdown error")
	}
	models.Each(func(inst *stateful.Instance) {
		if err := inst.Retire(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str("model", inst.Name).Msg("retire error")
		}
	})

	return nil
}

func declaredInputs(specs []types.InputSpec) []validate.InputInfo {
	out := make([]validate.InputInfo, 0, len(specs))
	for _, s := range specs {
		precision := validate.PrecisionFloat
		if s.Precision == "uint" || s.Precision == "uint64" {
			precision = validate.PrecisionUint
		}
		out = append(out, validate.InputInfo{Name: s.Name, Shape: s.Shape, Precision: precision})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
