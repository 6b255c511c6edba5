package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "Ax-Request-Id"
	RequestAtHeader = "Ax-Request-At"
	// Set on responses served from the idempotency store.
	ReplayHeader = "Ax-Idempotent-Replay"

	storeTimeout = 2 * time.Second
)

type IdempotencyConfig struct {
	// How long a finished response is replayed.
	TTL time.Duration
	// How long the in-progress marker lives if the handler never finishes.
	LockTTL time.Duration
	// Allowed client/server clock skew for Ax-Request-At.
	MaxSkew time.Duration
	Now     func() time.Time
}

// Idempotency makes mutating ledger calls safe to retry. The key is
// method + route + caller + request id, so it must run after the Authenticator.
type Idempotency struct {
	store *idempStore
	cfg   IdempotencyConfig
	log   logrus.FieldLogger
}

func NewIdempotency(rdb *redis.Client, cfg IdempotencyConfig, log logrus.FieldLogger) *Idempotency {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Idempotency{store: &idempStore{rdb: rdb}, cfg: cfg, log: log}
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

func errBody(msg string) map[string]string { return map[string]string{"error": msg} }

func (m *Idempotency) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !mutating(req.Method) {
				return next(c)
			}

			reqID := strings.ToLower(strings.TrimSpace(req.Header.Get(RequestIDHeader)))
			if reqID == "" {
				return c.JSON(http.StatusBadRequest, errBody("missing "+RequestIDHeader))
			}
			if !validRequestID(reqID) {
				return c.JSON(http.StatusBadRequest, errBody("invalid "+RequestIDHeader+" format"))
			}
			reqAt, err := parseRequestAt(req.Header.Get(RequestAtHeader))
			if err != nil {
				return c.JSON(http.StatusBadRequest, errBody(err.Error()))
			}
			now := m.cfg.Now().UTC()
			if reqAt.Before(now.Add(-m.cfg.MaxSkew)) || reqAt.After(now.Add(m.cfg.MaxSkew)) {
				return c.JSON(http.StatusBadRequest, errBody(RequestAtHeader+" too skewed"))
			}

			caller := Caller(c)
			if caller == "" {
				return c.JSON(http.StatusUnauthorized, errBody("missing caller identity"))
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			hash := bodyHash(body)

			key := idempKey(req.Method, c.Path(), caller, reqID)
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			ok, err := m.store.reserve(ctx, key, idempEntry{
				InProgress:  true,
				BodySHA256:  hash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   now,
			}, m.cfg.LockTTL)
			if err != nil {
				m.log.WithError(err).WithField("key", key).Warn("idempotency: reserve")
				return c.JSON(http.StatusServiceUnavailable, errBody("idempotency store unavailable"))
			}
			if !ok {
				return m.replay(ctx, c, key, hash)
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			m.finish(req.Context(), key, idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				BodySHA256:  hash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   m.cfg.Now().UTC(),
			})
			return nil
		}
	}
}

func (m *Idempotency) replay(ctx context.Context, c echo.Context, key, hash string) error {
	cur, err := m.store.load(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// released or expired between reserve and load
		return c.JSON(http.StatusConflict, errBody("request is already in progress"))
	case err != nil:
		m.log.WithError(err).WithField("key", key).Warn("idempotency: load entry")
		return c.JSON(http.StatusServiceUnavailable, errBody("idempotency store unavailable"))
	}
	if cur.BodySHA256 != hash {
		return c.JSON(http.StatusConflict, errBody(RequestIDHeader+" reused with different body"))
	}
	if cur.InProgress {
		return c.JSON(http.StatusConflict, errBody("request is already in progress"))
	}
	c.Response().Header().Set(ReplayHeader, "true")
	return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
}

// finish stores the response for replay. Server errors release the key
// instead: their transaction rolled back and the request may be retried.
func (m *Idempotency) finish(parent context.Context, key string, e idempEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), storeTimeout)
	defer cancel()

	var err error
	if e.Code >= http.StatusInternalServerError {
		err = m.store.release(ctx, key)
	} else {
		err = m.store.complete(ctx, key, e, m.cfg.TTL)
	}
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"key": key, "code": e.Code}).Warn("idempotency: finish")
	}
}
