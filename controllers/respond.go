package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/console"
	"github.com/cppla/ecorecycle/utils"
)

// statusFor maps an error to its HTTP status and response code.
func statusFor(err error) (int, int) {
	switch {
	case errors.Is(err, console.ErrBusy):
		return http.StatusConflict, 40901
	case errors.Is(err, console.ErrConfirmationRequired):
		return http.StatusConflict, 40902
	case errors.Is(err, console.ErrClosed):
		return http.StatusConflict, 40903
	case backend.IsNotFound(err):
		return http.StatusNotFound, 40401
	}
	switch backend.KindOf(err) {
	case backend.KindValidation:
		return http.StatusBadRequest, 40001
	case backend.KindAuth:
		return http.StatusUnauthorized, 40101
	case backend.KindQuery:
		return http.StatusInternalServerError, 50001
	case backend.KindUpload:
		return http.StatusInternalServerError, 50002
	case backend.KindProcedure:
		return http.StatusInternalServerError, 50003
	}
	return http.StatusInternalServerError, 50000
}

// fail writes err as a uniform error response. data may carry the
// re-rendered view so the page can show the error toast.
func fail(ctx *gin.Context, err error, data interface{}) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		var be *backend.Error
		if errors.As(err, &be) {
			utils.Named("http").Warnw("request failed", "path", ctx.FullPath(), "err", be.Detail())
		} else {
			utils.Named("http").Warnw("request failed", "path", ctx.FullPath(), "err", err)
		}
	}
	if data == nil {
		utils.Error(ctx, status, code, err.Error())
		return
	}
	utils.ErrorWithData(ctx, status, code, err.Error(), data)
}
