package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/hivemachines/account-provisioner/btcmsg"
	"github.com/hivemachines/account-provisioner/common"
	"github.com/hivemachines/account-provisioner/hive"
	"github.com/hivemachines/account-provisioner/httpserver"
	"github.com/hivemachines/account-provisioner/interfaces"
	"github.com/hivemachines/account-provisioner/keysource"
	"github.com/hivemachines/account-provisioner/machinecheck"
	"github.com/hivemachines/account-provisioner/provision"
	"github.com/hivemachines/account-provisioner/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "0.0.0.0:3000",
		Usage:   "address to listen on for API",
		EnvVars: []string{"LISTEN_ADDR"},
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "127.0.0.1:8090",
		Usage:   "address to listen on for Prometheus metrics, empty to disable",
		EnvVars: []string{"METRICS_ADDR"},
	},
	&cli.StringFlag{
		Name:    "hive-api-addr",
		Value:   hive.DefaultAPIAddress,
		Usage:   "Hive API node to broadcast through",
		EnvVars: []string{"HIVE_API_ADDR"},
	},
	&cli.StringFlag{
		Name:     "creator-account",
		Usage:    "Hive account that pays for and signs account creations",
		Required: true,
		EnvVars:  []string{"HIVE_ACCOUNT_CREATOR"},
	},
	&cli.StringFlag{
		Name:     "creator-active-key",
		Usage:    "creator account active key: a WIF or a vault:// reference",
		Required: true,
		EnvVars:  []string{"HIVE_ACCOUNT_CREATOR_ACTIVE_KEY"},
	},
	&cli.StringFlag{
		Name:    "ledger-uri",
		Value:   "file://btc_addresses.json",
		Usage:   "used-address ledger backend (file://, sqlite:// or s3://)",
		EnvVars: []string{"LEDGER_URI"},
	},
	&cli.StringFlag{
		Name:    "machine-check-addr",
		Value:   "",
		Usage:   "Bitcoin Machine registry endpoint, empty to disable ownership lookups",
		EnvVars: []string{"MACHINE_CHECK_ADDR"},
	},
	&cli.BoolFlag{
		Name:    "enforce-ownership",
		Value:   false,
		Usage:   "reject provisioning requests from addresses without a Bitcoin Machine",
		EnvVars: []string{"ENFORCE_OWNERSHIP"},
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:   "account-provisioner",
		Usage:  "Serve the Bitcoin-signature-gated Hive account provisioning API",
		Flags:  flags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	listenAddr := cCtx.String("listen-addr")
	metricsAddr := cCtx.String("metrics-addr")
	hiveAPIAddr := cCtx.String("hive-api-addr")
	creatorAccount := cCtx.String("creator-account")
	creatorKeyRef := cCtx.String("creator-active-key")
	ledgerURI := cCtx.String("ledger-uri")
	machineCheckAddr := cCtx.String("machine-check-addr")
	enforceOwnership := cCtx.Bool("enforce-ownership")
	logJSON := cCtx.Bool("log-json")
	logDebug := cCtx.Bool("log-debug")
	logUID := cCtx.Bool("log-uid")
	logService := cCtx.String("log-service")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}

	if enforceOwnership && machineCheckAddr == "" {
		logger.Error("enforce-ownership requires machine-check-addr")
		return errors.New("enforce-ownership requires machine-check-addr")
	}

	activeKey, err := keysource.Resolve(context.Background(), creatorKeyRef, logger)
	if err != nil {
		logger.Error("Failed to resolve creator active key", "err", err)
		return err
	}

	creatorKey, err := hive.PrivateKeyFromWIF(activeKey)
	if err != nil {
		logger.Error("Creator active key is not a valid WIF", "err", err)
		return err
	}

	logger.Info("Connecting to Hive API", "address", hiveAPIAddr, "creator", creatorAccount)
	hiveClient := hive.NewClient(hiveAPIAddr, creatorAccount, creatorKey, logger)

	ledger, err := storage.NewFactory(logger).LedgerFor(ledgerURI)
	if err != nil {
		logger.Error("Failed to open address ledger", "err", err, "uri", ledgerURI)
		return err
	}
	defer ledger.Close()

	var machines interfaces.MachineChecker
	if machineCheckAddr != "" {
		machines = machinecheck.NewClient(machineCheckAddr, logger)
	}

	provisioner := provision.NewService(provision.Config{
		Verifier:         btcmsg.Verifier{},
		Ledger:           ledger,
		Keys:             hive.CredentialGenerator{},
		Creator:          hiveClient,
		Machines:         machines,
		EnforceOwnership: enforceOwnership,
		Log:              logger,
	})

	handler := httpserver.NewHandler(provisioner, machines, logger)

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}

	srv, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	srv.RunInBackground()
	<-exit

	logger.Info("Shutting down")
	srv.Shutdown()
	return nil
}
