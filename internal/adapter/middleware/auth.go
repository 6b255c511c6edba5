package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/pkg/address"
)

const (
	CallerHeader = "Ax-Caller-Id"
	callerKey    = "ledger.caller"
)

type AuthConfig struct {
	// Empty secret disables token checks; the caller then comes from CallerHeader.
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	log    logrus.FieldLogger
}

func NewAuthenticator(cfg AuthConfig, log logrus.FieldLogger) *Authenticator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret)), log: log}
}

func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// Middleware resolves the caller identity. Mutating requests must carry one;
// reads pass through anonymously when none is given.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, err := a.resolve(c.Request())
			if err != nil {
				a.log.WithError(err).WithField("path", c.Path()).Debug("auth: rejected")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
			}
			if caller == "" && mutating(c.Request().Method) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing caller identity"})
			}
			if caller != "" {
				c.Set(callerKey, caller)
			}
			return next(c)
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (a *Authenticator) resolve(r *http.Request) (string, error) {
	if !a.Enabled() {
		raw := strings.TrimSpace(r.Header.Get(CallerHeader))
		if raw == "" {
			return "", nil
		}
		caller, err := address.Normalize(raw)
		if err != nil {
			return "", errors.New("invalid " + CallerHeader)
		}
		return caller, nil
	}

	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return "", nil
	}
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return "", errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	caller, err := address.Normalize(sub)
	if err != nil {
		return "", errors.New("token subject is not an address")
	}
	return caller, nil
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func extractBearer(h string) string {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// Caller returns the identity resolved by the Authenticator, or "".
func Caller(c echo.Context) string {
	s, _ := c.Get(callerKey).(string)
	return s
}

// IssueToken signs an HS256 token for subject. Used by tooling and tests.
func IssueToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
