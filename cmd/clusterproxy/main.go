package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clusterproxy/internal/cluster"
	"clusterproxy/internal/config"
	"clusterproxy/internal/demo"
	"clusterproxy/internal/grpc"
	"clusterproxy/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	buildTime = "development"
	gitCommit = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clusterproxy",
		Short: "Redis Cluster topology and routing proxy",
		Long: `clusterproxy maintains a Redis Cluster topology:
- CLUSTER NODES parsing and slot-to-node indexing
- Quiescence-based reconfiguration
- Per-worker cluster duplication
- gRPC-based module communication`,
		Version: fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Fatal("Failed to start clusterproxy")
	}
}

func run(configPath string, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"commit":     gitCommit,
	}).Info("Starting clusterproxy")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := cluster.NewCluster("worker-0", logger)
	cl.AuthSecret = cfg.AuthSecret
	cl.DialTimeout = cfg.DialTimeout
	cl.ReconnectRate = cfg.ReconnectRate
	cl.ReconnectBurst = cfg.ReconnectBurst

	seed := cluster.Address{IP: cfg.SeedHost, Port: cfg.SeedPort, UnixSocket: cfg.SeedSocket}
	if err := cluster.FetchClusterConfiguration(ctx, cl, seed); err != nil {
		return fmt.Errorf("failed to fetch initial cluster topology: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"nodes": len(cl.Nodes),
		"slots": cl.SlotIndex.Len(),
	}).Info("Initial cluster topology loaded")

	registry := cluster.NewRegistry(logger)
	for i := 0; i < cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		if _, err := registry.Acquire(workerID, cl); err != nil {
			logger.WithError(err).WithField("worker_id", workerID).Warn("failed to acquire worker duplicate")
		}
	}
	logger.WithField("workers", registry.Len()).Info("Worker duplicates ready")

	pollTicker := time.NewTicker(cfg.ReconfigPollInterval)
	defer pollTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pollTicker.C:
				if status := cl.Update(ctx); status == cluster.UpdateErr {
					logger.Warn("periodic reconfiguration failed, cluster is broken")
				}
			}
		}
	}()

	m := metrics.NewMetrics("clusterproxy")

	connRate := cfg.DefaultConnectionRate
	if !cfg.EnableRateLimiting {
		connRate = 0
	}
	routingListener := demo.NewListener(6400, cl, connRate, logger)
	if err := routingListener.Start(ctx); err != nil {
		logger.WithError(err).Warn("failed to start routing demo listener")
	}

	moduleService := grpc.NewModuleService(cl, logger)
	grpcLimits := grpc.Limits{
		MaxMsgSize:       cfg.GRPCMaxMsgSize,
		KeepaliveIdle:    cfg.GRPCKeepaliveIdle,
		KeepaliveAge:     cfg.GRPCKeepaliveAge,
		KeepaliveTime:    cfg.GRPCKeepaliveTime,
		KeepaliveMinTime: cfg.GRPCKeepaliveMinTime,
	}
	grpcServer := grpc.NewServer(cfg.GRPCAddr, cfg.GRPCPort, grpcLimits, moduleService, logger)

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()

	logger.WithFields(logrus.Fields{
		"address": cfg.GRPCAddr,
		"port":    cfg.GRPCPort,
	}).Info("gRPC ModuleService server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metricsMux := http.NewServeMux()

	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cl.Broken {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("BROKEN"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsMux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		m.Observe(cl)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","nodes":%d,"slots_mapped":%d,"updating":%t,"broken":%t}`,
			version, len(cl.Nodes), cl.SlotIndex.Len(), cl.Updating, cl.Broken)
	})

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("Starting metrics/health server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	logger.Info("clusterproxy started successfully")

	<-sigChan
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Metrics server shutdown error")
	}

	if err := grpcServer.Stop(); err != nil {
		logger.WithError(err).Error("gRPC server shutdown error")
	}

	if err := routingListener.Stop(); err != nil {
		logger.WithError(err).Error("Routing demo listener shutdown error")
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		registry.Release(fmt.Sprintf("worker-%d", i))
	}
	cl.Free()

	logger.Info("Shutdown complete")
	return nil
}
