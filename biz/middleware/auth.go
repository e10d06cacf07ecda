package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/yi-nology/photo_vault/pkg/common"
)

// Header names set by the authenticating gateway in front of the service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Auth returns a middleware that extracts user information from request headers
// and adds it to the context. This middleware does NOT enforce authentication,
// it only enriches the context with user info if present.
func Auth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if id, err := common.ParseUserID(string(c.GetHeader(HeaderUserID))); err == nil {
			ctx = common.ContextWithUserID(ctx, id)
			if role := string(c.GetHeader(HeaderUserRole)); role != "" {
				ctx = common.ContextWithUserRole(ctx, role)
			}
		}
		c.Next(ctx)
	}
}

// RequireAuth returns a middleware that enforces authentication.
// Requests without a valid X-User-Id header will be rejected with 401.
func RequireAuth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		userHeader := c.GetHeader(HeaderUserID)
		if len(userHeader) == 0 {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, common.CommonResponse{
				Code:  consts.StatusUnauthorized,
				Error: "authentication required",
				Msg:   "missing X-User-Id header",
			})
			return
		}

		id, err := common.ParseUserID(string(userHeader))
		if err != nil {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, common.CommonResponse{
				Code:  consts.StatusUnauthorized,
				Error: "authentication required",
				Msg:   "invalid X-User-Id header",
			})
			return
		}

		ctx = common.ContextWithUserID(ctx, id)
		if role := string(c.GetHeader(HeaderUserRole)); role != "" {
			ctx = common.ContextWithUserRole(ctx, role)
		}
		c.Next(ctx)
	}
}
