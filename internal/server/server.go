// Package server exposes the ledger engines as a JSON HTTP API. Handlers
// stay thin: they parse and authorize, delegate to an engine, and return
// errors for the shared error handler to render.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/ledger"
	"github.com/tallystack/treasury/internal/telemetry"
)

// Config carries the server settings that are not engines.
type Config struct {
	Version string

	// Signer verifies bearer tokens. Ignored when NoAuth is set, in
	// which case the X-Caller header is trusted instead.
	Signer *auth.Signer
	NoAuth bool

	// IdempotencyTTL bounds how long a recorded response is replayed
	// for a repeated Idempotency-Key. Zero means DefaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// Server routes HTTP requests to the ledger engines.
type Server struct {
	cfg      Config
	treasury *ledger.TreasuryLedger
	payroll  *ledger.PayrollRunner
	swaps    *ledger.SwapEngine
	idem     *idempotencyCache
}

func New(cfg Config, treasury *ledger.TreasuryLedger, payroll *ledger.PayrollRunner, swaps *ledger.SwapEngine) *Server {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}

	return &Server{
		cfg:      cfg,
		treasury: treasury,
		payroll:  payroll,
		swaps:    swaps,
		idem:     newIdempotencyCache(cfg.IdempotencyTTL),
	}
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "treasury",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.Must(uuid.NewV7()).String() },
	}))
	app.Use(requestLogger())
	app.Use(fiberrecover.New())
	app.Use(cors.New())

	app.Get("/healthz", handleHealth)
	app.Get("/version", s.handleVersion)

	v1 := app.Group("/v1")
	if s.cfg.NoAuth {
		v1.Use(auth.HeaderIdentity())
	} else {
		v1.Use(auth.Middleware(s.cfg.Signer))
	}

	v1.Post("/organizations", s.handleCreateOrganization)
	v1.Get("/organizations/:org", s.handleGetOrganization)
	v1.Post("/organizations/:org/treasuries", s.handleCreateTreasury)
	v1.Get("/organizations/:org/treasuries/:asset", s.handleBalances)
	v1.Post("/organizations/:org/treasuries/:asset/fund", s.idempotent(s.handleFund))
	v1.Post("/organizations/:org/treasuries/:asset/transfer", s.idempotent(s.handleInternalTransfer))
	v1.Post("/organizations/:org/treasuries/:asset/withdraw", s.idempotent(s.handleWithdraw))

	v1.Post("/payroll", s.idempotent(s.handlePayroll))

	v1.Post("/swaps", s.idempotent(s.handleSwapRequest))
	v1.Get("/swaps", s.handleSwapsPending)
	v1.Get("/swaps/:id", s.handleSwapGet)
	v1.Post("/swaps/:id/execute", s.idempotent(s.handleSwapExecute))

	v1.Get("/config/fee", s.handleFeeGet)
	v1.Put("/config/fee", s.handleFeeSet)

	return app
}

func handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleVersion(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=60")
	return c.JSON(fiber.Map{"version": s.cfg.Version})
}

// requestLogger renders handler errors through the shared error handler
// so the logged status is the one the client saw, then records the
// request duration.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := errorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()

		telemetry.GetMetrics().RequestDuration.Record(c.UserContext(),
			float64(elapsed)/float64(time.Millisecond),
			metric.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.route", c.Route().Path),
				attribute.Int("http.status_code", status),
			),
		)

		log.Info().
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("Request")

		return nil
	}
}
