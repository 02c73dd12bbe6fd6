package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/audit/journal"
	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/ledger"
	"github.com/tallystack/treasury/internal/logger"
	"github.com/tallystack/treasury/internal/server"
	"github.com/tallystack/treasury/internal/store"
	memorystore "github.com/tallystack/treasury/internal/store/memory"
	postgresstore "github.com/tallystack/treasury/internal/store/postgres"
	"github.com/tallystack/treasury/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TREASURY_LISTEN"`

	// Authentication
	AuthSecret string `help:"secret key for HMAC signing of access tokens" default:"" env:"TREASURY_AUTH_SECRET"`
	NoAuth     bool   `help:"disable authentication and identify callers by the X-Caller header (development only)" default:"false" env:"TREASURY_NO_AUTH"`

	// Swap configuration
	SwapOwner  string `help:"owner address that executes swaps and controls the fee" default:"" env:"TREASURY_SWAP_OWNER"`
	SwapEscrow string `help:"escrow address holding swap input funds until settlement" default:"" env:"TREASURY_SWAP_ESCROW"`
	SwapFeeBps uint32 `help:"initial swap fee in basis points" default:"25" env:"TREASURY_SWAP_FEE_BPS"`

	// Idempotency configuration
	IdempotencyTTL time.Duration `help:"retention of recorded responses for idempotency key replay" default:"24h" env:"TREASURY_IDEMPOTENCY_TTL"`

	// Development and operational modes
	DevMint []string `help:"seed a custody balance on startup, format address:asset:amount (development only)" env:"TREASURY_DEV_MINT"`
	Tracing bool     `help:"enable tracing" default:"false" env:"TREASURY_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"TREASURY_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Audit         AuditFlags         `embed:"" prefix:"audit-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TREASURY_POSTGRES_AUTO_MIGRATE"`
}

// AuditFlags configures the durable audit trail and event batching.
type AuditFlags struct {
	Journal       bool          `help:"write audit events to an append-only journal on disk" default:"false" env:"TREASURY_AUDIT_JOURNAL"`
	Dir           string        `help:"directory for active journal segments" default:"" env:"TREASURY_AUDIT_DIR"`
	ArchiveDir    string        `help:"directory for compressed journal archives" default:"" env:"TREASURY_AUDIT_ARCHIVE_DIR"`
	RetentionDays int           `help:"days to keep archived journal segments" default:"30" env:"TREASURY_AUDIT_RETENTION_DAYS"`
	FlushInterval time.Duration `help:"flush interval for event batching" default:"2s" env:"TREASURY_AUDIT_FLUSH_INTERVAL"`
	MaxBatchSize  int           `help:"max batch size in events" default:"50" env:"TREASURY_AUDIT_MAX_BATCH_SIZE"`
	MaxBatchBytes int64         `help:"max batch size in bytes" default:"1048576" env:"TREASURY_AUDIT_MAX_BATCH_BYTES"`
	ShipURL       string        `help:"HTTP endpoint to ship journal events to" default:"" env:"TREASURY_AUDIT_SHIP_URL"`
	ShipToken     string        `help:"bearer token for the ship endpoint" default:"" env:"TREASURY_AUDIT_SHIP_TOKEN"`
}

func (c *ServerCmd) Validate() error {
	if !c.NoAuth && len(c.AuthSecret) < auth.MinSecretLen {
		return fmt.Errorf("auth secret must be at least %d bytes (256 bits) for HMAC-SHA256 (--auth-secret or TREASURY_AUTH_SECRET)", auth.MinSecretLen)
	}
	if c.StoreType == "postgres" && c.PostgresStore.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if c.SwapEscrow == "" {
		return errors.New("swap escrow address is required (--swap-escrow or TREASURY_SWAP_ESCROW)")
	}
	if c.SwapFeeBps > domain.MaxFeeBasisPoints {
		return fmt.Errorf("swap fee must be at most %d basis points", domain.MaxFeeBasisPoints)
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "treasury-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	escrow, err := domain.ParseAddress(c.SwapEscrow)
	if err != nil {
		return fmt.Errorf("invalid swap escrow address: %w", err)
	}

	// Create stores based on store type
	var (
		organizationStore store.OrganizationStore
		treasuryStore     store.TreasuryStore
		swapStore         store.SwapStore
		feeStore          store.FeeStore
	)

	switch c.StoreType {
	case "postgres":
		// Create shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}

		// Run migrations if enabled
		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		organizationStore = postgresstore.NewOrganizationStore(pool)
		treasuryStore = postgresstore.NewTreasuryStore(pool)
		swapStore = postgresstore.NewSwapStore(pool)
		feeStore = postgresstore.NewFeeStore(pool)

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		organizationStore = memorystore.NewOrganizationStore()
		treasuryStore = memorystore.NewTreasuryStore()
		swapStore = memorystore.NewSwapStore()
		feeStore = memorystore.NewFeeStore()
		log.Info().Msg("Using in-memory stores")
	}

	// The vault is the custody boundary for external funds. Dev mints seed
	// it so funding and swap flows work without a real custodian attached.
	vault := custody.NewMemoryVault()
	if err := seedVault(vault, c.DevMint); err != nil {
		return err
	}

	recorder, stopAudit, err := c.Audit.build(ctx)
	if err != nil {
		return err
	}
	defer stopAudit()

	if err := c.ensureFeeConfig(ctx, feeStore); err != nil {
		return err
	}

	treasuryLedger := ledger.NewTreasuryLedger(organizationStore, treasuryStore, vault, recorder)
	payrollRunner := ledger.NewPayrollRunner(vault, recorder)
	swapEngine := ledger.NewSwapEngine(swapStore, feeStore, vault, escrow, recorder)

	cfg := server.Config{
		Version:        globals.Version,
		NoAuth:         c.NoAuth,
		IdempotencyTTL: c.IdempotencyTTL,
	}

	if c.NoAuth {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
	} else {
		signer, err := auth.NewSigner([]byte(c.AuthSecret))
		if err != nil {
			return fmt.Errorf("failed to create token signer: %w", err)
		}
		cfg.Signer = signer
	}

	app := server.New(cfg, treasuryLedger, payrollRunner, swapEngine).App()

	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-notifyCtx.Done()
		log.Info().Msg("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Failed to shut down cleanly")
		}
	}()

	log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Str("store", c.StoreType).Msg("Starting HTTP server")
	return app.Listen(c.Listen)
}

// ensureFeeConfig initialises the fee config on first start. Later starts
// leave whatever the owner has set since.
func (c *ServerCmd) ensureFeeConfig(ctx context.Context, feeStore store.FeeStore) error {
	_, err := feeStore.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to load fee config: %w", err)
	}

	if c.SwapOwner == "" {
		return errors.New("fee config is not initialised, --swap-owner is required on first start")
	}

	owner, err := domain.ParseAddress(c.SwapOwner)
	if err != nil {
		return fmt.Errorf("invalid swap owner address: %w", err)
	}

	if err := feeStore.Init(ctx, &domain.FeeConfig{
		Owner:       owner,
		BasisPoints: c.SwapFeeBps,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to initialise fee config: %w", err)
	}

	log.Info().Str("owner", c.SwapOwner).Uint32("basis_points", c.SwapFeeBps).Msg("Fee config initialised")
	return nil
}

// build assembles the audit recorder chain. Events always reach the
// structured log. With the journal enabled they also flow through the
// batching dispatcher into the on-disk journal, and sealed segments ship
// to the configured endpoint.
func (f *AuditFlags) build(ctx context.Context) (audit.Recorder, func(), error) {
	logRecorder := audit.NewLogRecorder()

	if !f.Journal {
		return logRecorder, func() {}, nil
	}

	jcfg := journal.DefaultConfig()
	if f.Dir != "" {
		jcfg.Dir = f.Dir
	}
	if f.ArchiveDir != "" {
		jcfg.ArchiveDir = f.ArchiveDir
	}
	if f.RetentionDays > 0 {
		jcfg.RetentionDays = f.RetentionDays
	}

	jrnl, err := journal.Open(jcfg, "treasury")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit journal: %w", err)
	}

	dispatcher := audit.NewDispatcher(audit.DispatcherConfig{
		FlushInterval: f.FlushInterval,
		MaxBatchSize:  f.MaxBatchSize,
		MaxBatchBytes: f.MaxBatchBytes,
	}, jrnl.Sink())

	if f.ShipURL != "" {
		if err := jrnl.Start(ctx, journal.NewHTTPShipper(f.ShipURL, f.ShipToken, 10*time.Second)); err != nil {
			return nil, nil, fmt.Errorf("failed to start journal shipper: %w", err)
		}
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := dispatcher.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop audit dispatcher")
		}
		if err := jrnl.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop audit journal")
		}
	}

	return audit.Multi{logRecorder, dispatcher}, stop, nil
}

// seedVault registers and mints custody balances from address:asset:amount
// entries.
func seedVault(vault *custody.MemoryVault, entries []string) error {
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid dev mint entry %q, expected address:asset:amount", entry)
		}

		account, err := domain.ParseAddress(parts[0])
		if err != nil {
			return fmt.Errorf("invalid dev mint address %q: %w", parts[0], err)
		}

		asset, err := domain.ParseAssetCode(parts[1])
		if err != nil {
			return fmt.Errorf("invalid dev mint asset %q: %w", parts[1], err)
		}

		amount, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dev mint amount %q: %w", parts[2], err)
		}

		vault.Register(account, asset)
		if err := vault.Mint(account, asset, amount); err != nil {
			return fmt.Errorf("failed to mint %q: %w", entry, err)
		}

		log.Info().Str("account", parts[0]).Str("asset", parts[1]).Uint64("amount", amount).Msg("Seeded custody balance")
	}

	return nil
}
