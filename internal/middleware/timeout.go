package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "budgetbook/internal/errors"
)

// requestTimeoutsTotal counts requests that ran past their deadline
var requestTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "budgetbook_http_request_timeouts_total",
	Help: "Total HTTP requests that exceeded the request timeout",
})

// RequestTimeout bounds every request's context by d. Store calls made with
// the request context fail once the deadline passes; if the handler has not
// written a response by then, a REQUEST_TIMEOUT error is returned.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		requestTimeoutsTotal.Inc()
		if !c.Writer.Written() {
			abortWithError(c, apperrors.ErrRequestTimeout)
		}
	}
}
