package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/metrics"
	"github.com/david/feedback-triage/internal/tracing"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// errorHandler renders every error as an ErrorResponse. Internal errors are
// logged and their message withheld.
func errorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		errCode := "internal"

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			code = apperr.Status(ae.Kind)
			errCode = ae.Code
			if ae.Kind != apperr.KindInternal {
				message = ae.Error()
			}
		case errors.As(err, &he):
			code = he.Code
			message = fmt.Sprint(he.Message)
			errCode = strings.ReplaceAll(strings.ToLower(http.StatusText(he.Code)), " ", "_")
		}

		ctx := c.Request().Context()
		if code >= http.StatusInternalServerError {
			log.Error("api is returning an error", "error", err, "route", c.Path(), "request_id", requestID(c))
		} else {
			log.Debug("request rejected", "status", code, "error", err, "route", c.Path())
		}

		resp := ErrorResponse{
			Error:     message,
			Code:      errCode,
			RequestID: requestID(c),
			TraceID:   tracing.TraceID(ctx),
		}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, resp)
		}
		if writeErr != nil {
			log.Warn("failed to write error response", "error", writeErr)
		}
	}
}

// requestLogger logs one line per request after the error handler has run.
func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			latency := time.Since(start)

			log.Info("request",
				"request_id", requestID(c),
				"method", req.Method,
				"uri", req.RequestURI,
				"route", c.Path(),
				"status", res.Status,
				"remote_ip", c.RealIP(),
				"latency", latency.String(),
				"response_size", strconv.FormatInt(res.Size, 10),
			)
			return nil
		}
	}
}

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), rule))
	}
	return apperr.Validation("%s", strings.Join(parts, "; "))
}

// bind decodes the request into dest and validates it.
func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return apperr.Validation("invalid request body")
	}
	return c.Validate(dest)
}
