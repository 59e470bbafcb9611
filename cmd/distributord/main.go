package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/meridianxyz/distributor/pkg/distributor"
	"github.com/meridianxyz/distributor/pkg/ledger"
	"github.com/meridianxyz/distributor/pkg/metrics"
	"github.com/meridianxyz/distributor/pkg/server"
	"github.com/meridianxyz/distributor/pkg/store/postgres"
	"github.com/meridianxyz/distributor/utils/pkg/logger"
)

// Build-time version information, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; ignore when absent.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address (or set LISTEN_ADDR env var)")

	// Postgres configuration; empty DSN keeps everything in memory.
	postgresDSNFlag := flag.String("postgres-dsn", "", "PostgreSQL DSN for durable storage (or set POSTGRES_DSN env var)")
	postgresMigrateFlag := flag.Bool("postgres-migrate", false, "Run database migrations before serving")

	// Claim endpoint rate limiting.
	claimRateFlag := flag.Float64("claim-rate", 1, "claim requests per second allowed per IP (0 disables limiting)")
	claimBurstFlag := flag.Int("claim-burst", 10, "claim request burst size per IP")

	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown timeout")

	flag.Parse()

	if envListenAddr := os.Getenv("LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envPostgresDSN := os.Getenv("POSTGRES_DSN"); envPostgresDSN != "" {
		*postgresDSNFlag = envPostgresDSN
	}

	log := logger.New(*verboseFlag)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store distributor.Store
	if *postgresDSNFlag != "" {
		if *postgresMigrateFlag {
			if err := postgres.Migrate(ctx, log, *postgresDSNFlag); err != nil {
				return err
			}
		}
		pool, err := postgres.Connect(ctx, *postgresDSNFlag)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgStore, err := postgres.NewStore(postgres.Config{
			Logger: log,
			Pool:   pool,
		})
		if err != nil {
			return err
		}
		store = pgStore
		log.Info("distributord: using postgres store")
	} else {
		store = distributor.NewMemoryStore()
		log.Warn("distributord: using in-memory store, state is lost on restart")
	}

	l := ledger.NewMemory()

	dist, err := distributor.New(distributor.Config{
		Logger: log,
		Store:  store,
		Ledger: l,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		Distributor: dist,
		Ledger:      l,
		ClaimRate:   rate.Limit(*claimRateFlag),
		ClaimBurst:  *claimBurstFlag,
	})
	if err != nil {
		return err
	}

	log.Info("distributord: starting", "version", version, "listen_addr", *listenAddrFlag)
	return srv.Run(ctx)
}
