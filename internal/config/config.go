package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gabrieltemtsen/clenja/internal/infrastructure/db"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

const (
	VerifierRedis  = "redis"
	VerifierStatic = "static"
	VerifierNone   = "none"
)

type Config struct {
	AppPort string

	DBDriver  string
	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	PostgresDSN string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdempTTLSecs int

	LogLevel  string
	LogFormat string
	LogFile   string

	AuthHMACSecret string
	AuthIssuer     string

	// Fixed identities, EIP-55 after Validate.
	OwnerID       string
	OperatorID    string
	LoanManagerID string
	CustodyID     string
	TreasuryID    string

	AssetSymbol string
	AgentFeeBps money.Bps

	VerifierBackend    string
	VerifiedPrincipals []string

	SnapshotSchedule string
	RiskRulesFile    string

	// parse failures collected by Load, reported by Validate
	errs []error
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// Load reads the environment, after loading .env when one exists.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		DBDriver:  strings.ToLower(getenv("DB_DRIVER", db.DriverMySQL)),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "clenja"),
		MySQLUser: getenv("MYSQL_USER", "clenja"),
		MySQLPass: getenv("MYSQL_PASS", "clenja"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  getenv("SQLITE_PATH", "clenja.db"),

		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		IdempTTLSecs:  300,

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
		LogFile:   os.Getenv("LOG_FILE"),

		AuthHMACSecret: os.Getenv("AUTH_HMAC_SECRET"),
		AuthIssuer:     os.Getenv("AUTH_ISSUER"),

		OwnerID:       os.Getenv("OWNER_ID"),
		OperatorID:    os.Getenv("OPERATOR_ID"),
		LoanManagerID: os.Getenv("LOAN_MANAGER_ID"),
		CustodyID:     os.Getenv("CUSTODY_ID"),
		TreasuryID:    os.Getenv("TREASURY_ID"),

		AssetSymbol: getenv("ASSET_SYMBOL", "USDC"),
		AgentFeeBps: 1000,

		VerifierBackend:  strings.ToLower(getenv("VERIFIER_BACKEND", VerifierNone)),
		SnapshotSchedule: getenv("SNAPSHOT_SCHEDULE", "0 * * * * *"),
		RiskRulesFile:    os.Getenv("RISK_RULES_FILE"),
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IdempTTLSecs = n
		}
	}
	if v := os.Getenv("AGENT_FEE_BPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("invalid AGENT_FEE_BPS %q: %w", v, err))
		}
		c.AgentFeeBps = money.Bps(n)
	}
	for _, p := range strings.Split(os.Getenv("VERIFIED_PRINCIPALS"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			c.VerifiedPrincipals = append(c.VerifiedPrincipals, p)
		}
	}
	return c
}

// Validate checks the configuration and normalizes identities in place.
func (c *Config) Validate() error {
	if len(c.errs) > 0 {
		return errors.Join(c.errs...)
	}
	switch c.DBDriver {
	case db.DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case db.DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case db.DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.IdempTTLSecs <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS %d", c.IdempTTLSecs)
	}
	if !c.AgentFeeBps.Valid() {
		return fmt.Errorf("AGENT_FEE_BPS %d above %d", c.AgentFeeBps, money.BpsDenominator)
	}

	for _, id := range []struct {
		key string
		v   *string
	}{
		{"OWNER_ID", &c.OwnerID},
		{"OPERATOR_ID", &c.OperatorID},
		{"LOAN_MANAGER_ID", &c.LoanManagerID},
		{"CUSTODY_ID", &c.CustodyID},
		{"TREASURY_ID", &c.TreasuryID},
	} {
		n, err := address.Normalize(*id.v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", id.key, *id.v, err)
		}
		*id.v = n
	}

	switch c.VerifierBackend {
	case VerifierRedis, VerifierNone:
	case VerifierStatic:
		for i, p := range c.VerifiedPrincipals {
			n, err := address.Normalize(p)
			if err != nil {
				return fmt.Errorf("invalid VERIFIED_PRINCIPALS entry %q: %w", p, err)
			}
			c.VerifiedPrincipals[i] = n
		}
	default:
		return fmt.Errorf("unsupported VERIFIER_BACKEND %q", c.VerifierBackend)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case db.DriverPostgres:
		return c.PostgresDSN
	case db.DriverSQLite:
		return c.SQLitePath
	default:
		return c.MySQLDSN()
	}
}
