package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/log"
	"github.com/cuemby/rangedb/pkg/metrics"
	"github.com/cuemby/rangedb/pkg/rangedb"
	"github.com/cuemby/rangedb/pkg/rangedbcfg"
	"github.com/cuemby/rangedb/pkg/transport/grpctransport"
	"github.com/cuemby/rangedb/pkg/wire"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rangedb",
	Short:   "rangedb - a non-blocking, batching key/value/triple store for HPC",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("rangedb version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to a rangedbcfg YAML file (default: built-in single-process config)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// loadConfig reads --config if given, else falls back to a single-rank
// in-memory Default(). The file overlays defaults; no flag overrides a
// config field.
func loadConfig(cmd *cobra.Command) (rangedbcfg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return rangedbcfg.Default(), nil
	}
	return rangedbcfg.Load(path)
}

var putCmd = &cobra.Command{
	Use:   "put SUBJECT PREDICATE OBJECT",
	Short: "Put one triple and flush it immediately",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, _, _, err := rangedb.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to start rangedb: %w", err)
		}
		defer c.Close()

		subj := blob.NewReference([]byte(args[0]), blob.Byte)
		pred := blob.NewReference([]byte(args[1]), blob.Byte)
		obj := blob.NewReference([]byte(args[2]), blob.Byte)

		if err := c.Put(subj, pred, obj); err != nil {
			return fmt.Errorf("put: %w", err)
		}
		stream, err := c.FlushPuts()
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		stream.GoToHead()
		fmt.Printf("status: %s (rank %d)\n", stream.Status(), stream.RangeServer())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get SUBJECT PREDICATE",
	Short: "Get one triple's object and flush it immediately",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, _, _, err := rangedb.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to start rangedb: %w", err)
		}
		defer c.Close()

		subj := blob.NewReference([]byte(args[0]), blob.Byte)
		pred := blob.NewReference([]byte(args[1]), blob.Byte)

		if err := c.Get(subj, pred, blob.Byte); err != nil {
			return fmt.Errorf("get: %w", err)
		}
		stream, err := c.FlushGets()
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		stream.GoToHead()
		if stream.Status() != wire.Success {
			fmt.Printf("status: %s (rank %d)\n", stream.Status(), stream.RangeServer())
			return nil
		}
		obj, _ := stream.Object()
		fmt.Printf("%s\n", obj.Data())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "flush-stats",
	Short: "Print lifetime put/get stats for every local datastore this rank owns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, _, _, err := rangedb.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to start rangedb: %w", err)
		}
		defer c.Close()

		for offset, s := range c.GetStats() {
			fmt.Printf("datastore %d: puts=%d (%s) gets=%d (%s)\n", offset, s.NumPuts, s.PutTime, s.NumGets, s.GetTime)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this rank as a range server, exposing its datastores over gRPC",
	Long: `Starts a gRPC range-server listener for this rank plus a Prometheus
/metrics endpoint, and blocks until interrupted. The rank must be a range
server under the configured placement ratios (client_ratio, server_ratio).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Transport.ListenAddr == "" {
			return fmt.Errorf("serve: transport.listen_addr must be set")
		}

		c, dispatcher, _, err := rangedb.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to start rangedb: %w", err)
		}
		defer c.Close()

		if len(dispatcher.Stores) == 0 {
			return fmt.Errorf("serve: rank %d is not a range server under this placement", cfg.Rank)
		}

		lis, err := net.Listen("tcp", cfg.Transport.ListenAddr)
		if err != nil {
			return fmt.Errorf("serve: listen on %s: %w", cfg.Transport.ListenAddr, err)
		}
		grpcServer := grpctransport.NewServer(dispatcher)

		metrics.SetVersion(Version)
		metrics.RegisterComponent("rangeserver", true, fmt.Sprintf("rank %d, %d datastore(s)", cfg.Rank, len(dispatcher.Stores)))
		metrics.RegisterComponent("transport", true, fmt.Sprintf("grpc listening on %s", cfg.Transport.ListenAddr))

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()

		collector := metrics.NewCollector(c)
		collector.Start()
		defer collector.Stop()

		errCh := make(chan error, 1)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()

		fmt.Printf("rangedb rank %d serving %d datastore(s) on %s\n", cfg.Rank, len(dispatcher.Stores), cfg.Transport.ListenAddr)
		fmt.Printf("metrics: http://%s/metrics\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nshutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nrange server error: %v\n", err)
		}

		grpcServer.GracefulStop()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics and health endpoints")
}
