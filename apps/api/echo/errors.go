package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, "realtime hub unavailable")
)

// resolveHTTPError maps err to a status code and a response message (a string or field errors).
// internal is true for unexpected errors, which are reported and hidden from clients.
func resolveHTTPError(err error, translator ut.Translator) (code int, message interface{}, internal bool) {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message, false
		}
		if herr, ok := cause.Internal.(*echo.HTTPError); ok {
			cause = herr
		}
		return cause.Code, cause.Message, false

	case validator.ValidationErrors:
		msgs := make(map[string]string, len(cause))
		for _, fe := range cause {
			msgs[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, msgs, false

	case *core.ValidationError:
		if len(cause.Fields) == 0 {
			return http.StatusBadRequest, cause.Error(), false
		}
		msgs := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			msgs[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, msgs, false
	}

	if errors.Cause(err) == collab.ErrHubStopped {
		return errHttpUnavailable.Code, errHttpUnavailable.Message, false
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler rendering our errors as JSON.
// signalShutdown is called whenever a core shutdown error reaches it.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message, internal := resolveHTTPError(err, translator)
		if internal {
			extra := map[string]interface{}{"path": ctx.Path()}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				extra["username"] = claims.Username
			}
			logger.Error("http: "+ctx.Request().Method+" "+ctx.Path(), errors.WithStack(err), extra)

			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
