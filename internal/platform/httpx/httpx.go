// Package httpx holds request decoding helpers shared by the domain handlers.
package httpx

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/phr/internal/platform/apperr"
)

// PathUUID parses the named path parameter.
func PathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + name)
	}
	return id, nil
}

// Bind decodes the request body into dst. Decoding failures are client
// errors; field rules are checked later by the services.
func Bind(c echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}

// Message is the body returned by delete endpoints.
type Message struct {
	Message string `json:"message"`
}
