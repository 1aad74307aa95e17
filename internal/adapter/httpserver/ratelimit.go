package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/livetranslate/internal/platform/errors"
	"golang.org/x/time/rate"
)

// apiQuota throttles the control API per client address. Idle visitors are
// forgotten after expiry.
type apiQuota struct {
	perSecond float64
	burst     int
	expiry    time.Duration
}

var defaultAPIQuota = apiQuota{perSecond: 10, burst: 20, expiry: 5 * time.Minute}

func (q apiQuota) middleware() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(q.perSecond),
		Burst:     q.burst,
		ExpiresIn: q.expiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: q.deny,
	})
}

// deny answers 429 with the time until the next token as Retry-After.
func (q apiQuota) deny(c echo.Context, client string, _ error) error {
	slog.Debug("Control API request throttled", "client", client, "path", c.Path())
	c.Response().Header().Set("Retry-After", strconv.Itoa(q.retryAfterSeconds()))
	return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
		Status:  apperrors.StatusError,
		Message: "rate limit exceeded",
		Type:    "rate_limited",
	})
}

func (q apiQuota) retryAfterSeconds() int {
	if q.perSecond <= 0 {
		return int(q.expiry.Seconds())
	}
	return int(math.Ceil(1 / q.perSecond))
}
