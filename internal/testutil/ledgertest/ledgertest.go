// Package ledgertest builds a full pool ledger on in-memory SQLite.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gabrieltemtsen/clenja/internal/adapter/repository/gormrepo"
	"github.com/gabrieltemtsen/clenja/internal/app"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	dbinfra "github.com/gabrieltemtsen/clenja/internal/infrastructure/db"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Fixed identities. Unit is one whole token at 6 decimals.
const (
	Owner    = "0x00000000000000000000000000000000000000A1"
	Operator = "0x00000000000000000000000000000000000000b2"
	Manager  = "0x00000000000000000000000000000000000000C3"
	Custody  = "0x000000000000000000000000000000000000c057"
	Treasury = "0x0000000000000000000000000000000000007EA5"
	Alice    = "0x00000000000000000000000000000000000A11cE"
	Bob      = "0x0000000000000000000000000000000000000B0b"
	Carol    = "0x000000000000000000000000000000000000ca01"

	Unit   = 1_000000
	FeeBps = 1000
	Day    = 24 * 60 * 60
)

// Start is the default clock origin.
var Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func Units(n uint64) money.Amount { return money.FromUint64(n * Unit) }

// DefaultRules caps a borrower at 5% of the pool and utilization at 80%.
func DefaultRules() risk.Rules {
	return risk.Rules{
		MaxBorrowerBps:    500,
		MaxUtilizationBps: 8000,
		MaxLoanDuration:   365 * Day,
		MinAprBps:         500,
		MaxAprBps:         3000,
		MinLoanAmount:     Units(1),
		MaxLoanAmount:     Units(120),
	}
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type Stack struct {
	*app.Ledger
	DB     *gorm.DB
	UoW    *gormrepo.GormUoW
	Assets *gormrepo.AssetLedger
	Clock  *Clock
}

type Option func(*app.Options)

func WithRules(r risk.Rules) Option { return func(o *app.Options) { o.Rules = r } }

func WithOracles(m map[string]risk.Verifier) Option {
	return func(o *app.Options) { o.Oracles = m }
}

func WithFeeBps(bps money.Bps) Option { return func(o *app.Options) { o.AgentFeeBps = bps } }

// New opens a fresh database and bootstraps pool 1 with the fixed roles.
func New(t testing.TB, opts ...Option) *Stack {
	t.Helper()
	db, err := dbinfra.OpenGorm(dbinfra.DriverSQLite, ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := dbinfra.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &Clock{now: Start}
	o := app.Options{
		PoolID:      1,
		Roles:       loanUC.Roles{Owner: Owner, Operator: Operator, LoanManager: Manager},
		Asset:       "USDC",
		Custody:     Custody,
		Treasury:    Treasury,
		AgentFeeBps: FeeBps,
		Rules:       DefaultRules(),
		Now:         clock.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tx := gormrepo.NewGormUoW(db)
	l := app.New(tx, o)
	if err := l.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return &Stack{Ledger: l, DB: db, UoW: tx, Assets: gormrepo.NewAssetLedger(db), Clock: clock}
}

// Mint credits account with amount of the pool asset.
func (s *Stack) Mint(t testing.TB, account string, amount money.Amount) {
	t.Helper()
	if err := s.Assets.Credit(context.Background(), account, amount); err != nil {
		t.Fatalf("mint %s: %v", account, err)
	}
}

func (s *Stack) Balance(t testing.TB, account string) money.Amount {
	t.Helper()
	b, err := s.Assets.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	return b
}
