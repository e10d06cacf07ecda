package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/pkg/common"
)

// Logging returns a middleware that writes one access log line per request.
func Logging(log *zap.Logger) app.HandlerFunc {
	log = log.Named("http")
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		status := c.Response.StatusCode()
		fields := []zap.Field{
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", string(c.Request.Method())),
			zap.String("path", string(c.Request.URI().Path())),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if id, ok := common.GetUserID(ctx); ok {
			fields = append(fields, zap.Uint("user_id", id))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
