// Package handler exposes the library services over HTTP.  Handlers
// bind and validate the request, call one service method and map the
// outcome to a status code and a JSON body.  Failures always use the
// shape {"error": message}.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/middleware"
	"github.com/iliyamo/library-reservation/internal/service"
)

const requestTimeout = 5 * time.Second

// Validator adapts validator/v10 to echo.Validator.  Field names in
// messages are the JSON names the client sent.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// validationMessage turns the first field error into a sentence.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid request body"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gt":
		return fe.Field() + " must be a positive number"
	}
	return fe.Field() + " is invalid"
}

// bind decodes and validates the body into req.  On failure it has
// already written the 400 response and returns false.
func bind(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	return true, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context, what string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid " + what})
}

// getUserID returns the authenticated account id.
func getUserID(c echo.Context) (uint64, error) {
	id, _, ok := middleware.Identity(c)
	if !ok {
		return 0, errors.New("missing identity in context")
	}
	return id, nil
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps a service error kind to a status code.  Not-found is a
// 400 on mutations; read endpoints pass notFound = 404.
func statusFor(err error, notFound int) int {
	switch service.KindOf(err) {
	case service.KindValidation, service.KindConflict, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindNotFound:
		return notFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err using the mutation mapping.
func fail(c echo.Context, err error) error {
	return respondErr(c, err, http.StatusBadRequest)
}

// failRead writes err using the read mapping (missing entity is a 404).
func failRead(c echo.Context, err error) error {
	return respondErr(c, err, http.StatusNotFound)
}

func respondErr(c echo.Context, err error, notFound int) error {
	status := statusFor(err, notFound)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err)
		return c.JSON(status, echo.Map{"error": "Internal server error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
