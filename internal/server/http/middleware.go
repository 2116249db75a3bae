package httpserver

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/crypto"
	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/limiter"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

const (
	headerRequestID = "X-Request-ID"
	headerCallback  = "X-Callback-Token"

	localRequestID = "request_id"
	localUserID    = "user_id"
)

// requestID keeps a caller-supplied X-Request-ID or assigns a new one.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}
		c.Locals(localRequestID, id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// accessLog logs one line per request. Bodies are never logged.
func accessLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = statusFor(err)
		}
		log.Info("http",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", requestIDOf(c)),
		)
		return err
	}
}

func bearer(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// optionalAuth resolves the logged-in user when a valid bearer token is
// present. A present but invalid token is rejected rather than ignored.
func optionalAuth(sessions service.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearer(c)
		if tok == "" || sessions == nil {
			return c.Next()
		}
		uid, err := sessions.Authenticate(tok)
		if err != nil {
			return errs.ErrUnauthorized
		}
		c.Locals(localUserID, uid)
		return c.Next()
	}
}

// requireAuth rejects requests without a logged-in user.
func requireAuth(c *fiber.Ctx) error {
	if userIDOf(c) == "" {
		return errs.ErrUnauthorized
	}
	return c.Next()
}

func userIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// callbackOnly admits trusted callers presenting the shared token in the
// X-Callback-Token header or the token query parameter. With a lockout
// configured, clients that keep failing are refused with 429 until their
// block expires.
func (h *handler) callbackOnly(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		lock := h.cfg.Lockout
		ip := limiter.HashIP(c.IP())
		if lock != nil {
			ok, retry, err := lock.Allow(ctx, scope, ip)
			if err != nil {
				return err
			}
			if !ok {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Seconds())+1))
				return fiber.NewError(fiber.StatusTooManyRequests, "too many failed attempts")
			}
		}

		got := c.Get(headerCallback)
		if got == "" {
			got = c.Query("token")
		}
		if !crypto.VerifyToken(got, h.cfg.CallbackToken) {
			if lock != nil {
				blocked, _, err := lock.Failure(ctx, scope, ip)
				if err != nil {
					h.log.Error("record callback failure", zap.String("scope", scope), zap.Error(err))
				} else if blocked {
					h.log.Warn("callback client locked out",
						zap.String("scope", scope), zap.String("request_id", requestIDOf(c)))
				}
			}
			return errs.ErrUnauthorized
		}
		if lock != nil {
			if err := lock.Success(ctx, scope, ip); err != nil {
				h.log.Warn("reset callback lockout", zap.String("scope", scope), zap.Error(err))
			}
		}
		return c.Next()
	}
}
