package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/lwwdict/clock"
	"github.com/numbleroot/lwwdict/comm"
	"github.com/numbleroot/lwwdict/config"
	"github.com/numbleroot/lwwdict/crypto"
	"github.com/numbleroot/lwwdict/replica"
	"github.com/numbleroot/lwwdict/server"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initTLS returns the TLS config used between replicas,
// or nil if the config file does not contain a TLS section.
func initTLS(conf *config.Config) (*tls.Config, error) {

	if conf.TLS == nil {
		return nil, nil
	}

	return crypto.NewInternalTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc, conf.TLS.RootCertLoc)
}

// flushState saves the state of rep every interval
// until ctx is done.
func flushState(ctx context.Context, logger log.Logger, rep replica.Service, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rep.Save(); err != nil {
				level.Warn(logger).Log("msg", "failed to flush replica state", "err", err)
			}
		}
	}
}

func main() {

	var err error

	// Parse command-line flags.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", "", "Optionally provide path to a .env file holding secrets, e.g. the API token.")
	pkiFlag := flag.String("pki", "", "Generate a root certificate and one certificate per replica in the config into this directory, then exit.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	if *pkiFlag != "" {

		err = generatePKI(conf, *pkiFlag, time.Now())
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to generate PKI",
				"err", err,
			)
			os.Exit(2)
		}

		level.Info(logger).Log("msg", "generated PKI", "dir", *pkiFlag)
		os.Exit(0)
	}

	env := new(config.Env)

	if *envFlag != "" {

		env, err = config.LoadEnv(*envFlag)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to load the env file", "err", err,
			)
			os.Exit(3)
		}
	}

	tlsConfig, err := initTLS(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize internal TLS config",
			"err", err,
		)
		os.Exit(4)
	}

	logger = log.With(logger, "replica", conf.Replica.Name)

	// Open the local replica and wrap it
	// with logging and metrics middlewares.
	rep, err := replica.Open(conf.Replica.Name, conf.Replica.StateFile, clock.New())
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to open replica state",
			"err", err,
		)
		os.Exit(5)
	}

	dictMetrics := NewDictMetrics(conf.Replica.PrometheusAddr)
	dictMetrics.Keys.Set(float64(rep.Len()))

	rep = replica.NewLoggingService(rep, logger)
	rep = replica.NewMetricsService(rep, dictMetrics)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	socket, err := net.Listen("tcp", conf.Replica.ListenSyncAddr)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to listen for peer states",
			"addr", conf.Replica.ListenSyncAddr,
			"err", err,
		)
		os.Exit(6)
	}

	recv := comm.NewReceiver(log.With(logger, "component", "receiver"), rep, comm.ReceiverOptions(tlsConfig)...)

	sender, err := comm.InitSender(log.With(logger, "component", "sender"), rep, conf.Replica.Peers, conf.Replica.SyncInterval.Duration, comm.SenderOptions(tlsConfig)...)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize sender",
			"err", err,
		)
		os.Exit(7)
	}

	api := &http.Server{
		Addr:              conf.Replica.ListenAPIAddr,
		Handler:           server.NewServer(log.With(logger, "component", "api"), rep, env.APIToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 2)

	go func() {
		errC <- recv.Serve(socket)
	}()

	go func() {

		level.Info(logger).Log("msg", "HTTP API listening", "addr", api.Addr)

		if err := api.ListenAndServe(); err != http.ErrServerClosed {
			errC <- err
		}
	}()

	go runPromHTTP(ctx, logger, conf.Replica.PrometheusAddr)
	go sender.Run(ctx)
	go flushState(ctx, logger, rep, conf.Replica.SyncInterval.Duration)

	exitCode := 0

	select {
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down")
	case err = <-errC:
		level.Error(logger).Log(
			"msg", "server failed",
			"err", err,
		)
		exitCode = 8
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		level.Warn(logger).Log("msg", "failed to shut down HTTP API", "err", err)
	}

	recv.Stop()

	if err := sender.Close(); err != nil {
		level.Warn(logger).Log("msg", "failed to close peer connections", "err", err)
	}

	if err := rep.Save(); err != nil {
		level.Error(logger).Log("msg", "failed to save replica state", "err", err)
		exitCode = 9
	}

	os.Exit(exitCode)
}
