package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/photo_vault/biz/service"
	"github.com/yi-nology/photo_vault/pkg/common"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/validator"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

var errUnauthenticated = errors.New("authentication required")

// Ping is the liveness probe.
func Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, common.CommonResponse{Code: consts.StatusOK, Msg: "pong"})
}

// actorFrom builds the service caller from the identity the auth middleware
// placed in ctx.
func actorFrom(ctx context.Context) (service.Actor, bool) {
	id, ok := common.GetUserID(ctx)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Admin: common.IsAdmin(ctx)}, true
}

// parseID reads a positive numeric path parameter.
func parseID(c *app.RequestContext, name string) (uint, error) {
	return parsePositive(name, c.Param(name))
}

func parsePositive(name, raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return uint(id), nil
}

// --------------------- Response helpers ---------------------

func respondData(c *app.RequestContext, status int, data any) {
	c.JSON(status, common.CommonResponse{
		Code: status,
		Msg:  http.StatusText(status),
		Data: data,
	})
}

func respondOK(c *app.RequestContext, data any) {
	respondData(c, consts.StatusOK, data)
}

func respondError(c *app.RequestContext, status int, err error) {
	msg := http.StatusText(status)
	detail := ""
	if err != nil {
		detail = err.Error()
		if status < consts.StatusInternalServerError {
			msg = detail
		}
	}
	c.JSON(status, common.CommonResponse{
		Code:  status,
		Msg:   msg,
		Error: detail,
	})
}

func writeBadRequest(c *app.RequestContext, err error) {
	respondError(c, consts.StatusBadRequest, err)
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(c *app.RequestContext, err error) {
	respondError(c, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return consts.StatusUnauthorized
	case errors.Is(err, service.ErrFolderNotFound),
		errors.Is(err, service.ErrImageNotFound),
		errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, service.ErrPermissionNotFound):
		return consts.StatusNotFound
	case errors.Is(err, service.ErrAccessDenied):
		return consts.StatusForbidden
	case errors.Is(err, service.ErrFolderNameExists):
		return consts.StatusConflict
	case errors.Is(err, validator.ErrFileTooLarge):
		return consts.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrNoFiles),
		errors.Is(err, service.ErrTooManyFiles),
		errors.Is(err, validator.ErrEmptyFile),
		errors.Is(err, validator.ErrUnsupportedType),
		errors.Is(err, variant.ErrDecode):
		return consts.StatusBadRequest
	case errors.Is(err, queue.ErrQueueFull),
		errors.Is(err, queue.ErrQueueClosed),
		errors.Is(err, service.ErrShuttingDown):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}
