//go:build integration

package postgres

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tallystack/treasury/internal/domain"
)

func setupTestPool(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func createOrg(t *testing.T, ctx context.Context, orgs *OrganizationStore) domain.Address {
	t.Helper()

	org := domain.RandomAddress()
	require.NoError(t, orgs.Create(ctx, &domain.Organization{
		Address:   org,
		Admin:     domain.RandomAddress(),
		CreatedAt: time.Now().UTC(),
	}))

	return org
}

func TestIntegration_OrganizationStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestPool(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)

	t.Run("create and get", func(t *testing.T) {
		org := &domain.Organization{
			Address:   domain.RandomAddress(),
			Admin:     domain.RandomAddress(),
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
		require.NoError(t, orgs.Create(ctx, org))

		got, err := orgs.Get(ctx, org.Address)
		require.NoError(t, err)
		require.Equal(t, org.Address, got.Address)
		require.Equal(t, org.Admin, got.Admin)
		require.True(t, org.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate address rejected", func(t *testing.T) {
		org := &domain.Organization{
			Address:   domain.RandomAddress(),
			Admin:     domain.RandomAddress(),
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, orgs.Create(ctx, org))
		require.ErrorIs(t, orgs.Create(ctx, org), domain.ErrAlreadyExists)
	})

	t.Run("missing organization", func(t *testing.T) {
		_, err := orgs.Get(ctx, domain.RandomAddress())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestIntegration_TreasuryStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestPool(t, ctx)
	defer cleanup()

	orgs := NewOrganizationStore(pool)
	treasuries := NewTreasuryStore(pool)

	t.Run("create and exists", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)

		exists, err := treasuries.Exists(ctx, org, "USDC")
		require.NoError(t, err)
		require.False(t, exists)

		require.NoError(t, treasuries.Create(ctx, org, "USDC"))

		exists, err = treasuries.Exists(ctx, org, "USDC")
		require.NoError(t, err)
		require.True(t, exists)

		require.ErrorIs(t, treasuries.Create(ctx, org, "USDC"), domain.ErrAlreadyExists)
	})

	t.Run("create requires the organization", func(t *testing.T) {
		require.ErrorIs(t, treasuries.Create(ctx, domain.RandomAddress(), "USDC"), domain.ErrNotFound)
	})

	t.Run("credit requires the treasury", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)

		require.ErrorIs(t, treasuries.Credit(ctx, org, "USDC", "operating", 100), domain.ErrNotFound)
	})

	t.Run("credit debit and balances", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)
		require.NoError(t, treasuries.Create(ctx, org, "USDC"))

		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "operating", 1_000))
		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "operating", 500))
		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "reserve", 250))

		balance, err := treasuries.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(1_500), balance)

		require.NoError(t, treasuries.Debit(ctx, org, "USDC", "operating", 300))

		balances, err := treasuries.Balances(ctx, org, "USDC")
		require.NoError(t, err)
		require.Equal(t, map[domain.Tag]uint64{
			"operating": 1_200,
			"reserve":   250,
		}, balances)
	})

	t.Run("missing tag reads as zero", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)
		require.NoError(t, treasuries.Create(ctx, org, "USDC"))

		balance, err := treasuries.Balance(ctx, org, "USDC", "ghost")
		require.NoError(t, err)
		require.Zero(t, balance)
	})

	t.Run("debit guards the balance", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)
		require.NoError(t, treasuries.Create(ctx, org, "USDC"))
		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "operating", 100))

		require.ErrorIs(t, treasuries.Debit(ctx, org, "USDC", "operating", 101), domain.ErrInsufficientBalance)
		require.ErrorIs(t, treasuries.Debit(ctx, org, "USDC", "ghost", 1), domain.ErrInsufficientBalance)

		balance, err := treasuries.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(100), balance)
	})

	t.Run("move is atomic", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)
		require.NoError(t, treasuries.Create(ctx, org, "USDC"))
		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "operating", 1_000))

		require.NoError(t, treasuries.Move(ctx, org, "USDC", "operating", "payroll", 400))

		balances, err := treasuries.Balances(ctx, org, "USDC")
		require.NoError(t, err)
		require.Equal(t, uint64(600), balances["operating"])
		require.Equal(t, uint64(400), balances["payroll"])

		require.ErrorIs(t, treasuries.Move(ctx, org, "USDC", "operating", "payroll", 601), domain.ErrInsufficientBalance)
		require.ErrorIs(t, treasuries.Move(ctx, org, "USDC", "operating", "operating", 1), domain.ErrInvalidInput)
	})

	t.Run("credit past uint64 overflows", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)
		require.NoError(t, treasuries.Create(ctx, org, "USDC"))

		require.NoError(t, treasuries.Credit(ctx, org, "USDC", "operating", math.MaxUint64))
		require.ErrorIs(t, treasuries.Credit(ctx, org, "USDC", "operating", 1), domain.ErrOverflow)

		balance, err := treasuries.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(math.MaxUint64), balance)
	})

	t.Run("balances requires the treasury", func(t *testing.T) {
		org := createOrg(t, ctx, orgs)

		_, err := treasuries.Balances(ctx, org, "USDC")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestIntegration_SwapStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestPool(t, ctx)
	defer cleanup()

	swaps := NewSwapStore(pool)

	newTicket := func() *domain.SwapTicket {
		return &domain.SwapTicket{
			Requester: domain.RandomAddress(),
			InAsset:   "USDC",
			OutAsset:  "EUR",
			AmountIn:  1_000,
			AmountOut: 998,
			Fee:       2,
			Rate:      domain.RateScale,
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	t.Run("insert assigns ascending ids", func(t *testing.T) {
		first, err := swaps.Insert(ctx, newTicket())
		require.NoError(t, err)
		require.Equal(t, uint64(1), first)

		second, err := swaps.Insert(ctx, newTicket())
		require.NoError(t, err)
		require.Equal(t, uint64(2), second)
	})

	t.Run("get round trips every field", func(t *testing.T) {
		ticket := newTicket()
		ticket.AmountIn = math.MaxUint64
		ticket.Rate = domain.RateScale / 2 * 3

		id, err := swaps.Insert(ctx, ticket)
		require.NoError(t, err)

		got, err := swaps.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ticket.Requester, got.Requester)
		require.Equal(t, uint64(math.MaxUint64), got.AmountIn)
		require.Equal(t, ticket.Rate, got.Rate)
		require.True(t, ticket.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("remove is exactly once", func(t *testing.T) {
		id, err := swaps.Insert(ctx, newTicket())
		require.NoError(t, err)

		require.NoError(t, swaps.Remove(ctx, id))
		require.ErrorIs(t, swaps.Remove(ctx, id), domain.ErrNotFound)

		_, err = swaps.Get(ctx, id)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ids are never reused", func(t *testing.T) {
		id, err := swaps.Insert(ctx, newTicket())
		require.NoError(t, err)
		require.NoError(t, swaps.Remove(ctx, id))

		next, err := swaps.Insert(ctx, newTicket())
		require.NoError(t, err)
		require.Greater(t, next, id)
	})

	t.Run("pending lists in id order", func(t *testing.T) {
		tickets, err := swaps.Pending(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, tickets)

		for i := 1; i < len(tickets); i++ {
			require.Greater(t, tickets[i].ID, tickets[i-1].ID)
		}
	})
}

func TestIntegration_FeeStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestPool(t, ctx)
	defer cleanup()

	fees := NewFeeStore(pool)
	owner := domain.RandomAddress()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("reads before init fail", func(t *testing.T) {
		_, err := fees.Get(ctx)
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.ErrorIs(t, fees.SetBasisPoints(ctx, 50, start), domain.ErrNotFound)
	})

	t.Run("init once", func(t *testing.T) {
		cfg := &domain.FeeConfig{Owner: owner, BasisPoints: 25, UpdatedAt: start}
		require.NoError(t, fees.Init(ctx, cfg))
		require.ErrorIs(t, fees.Init(ctx, cfg), domain.ErrAlreadyExists)
	})

	t.Run("set updates points and timestamp", func(t *testing.T) {
		later := start.Add(time.Hour)
		require.NoError(t, fees.SetBasisPoints(ctx, 40, later))

		got, err := fees.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, owner, got.Owner)
		require.Equal(t, uint32(40), got.BasisPoints)
		require.True(t, later.Equal(got.UpdatedAt))
	})
}
