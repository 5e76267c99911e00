package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with statusCode as both the HTTP status
// and the envelope status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// RawJSONResponse writes an already encoded envelope, e.g. from cache.
func RawJSONResponse(c echo.Context, body []byte) error {
	return c.JSONBlob(http.StatusOK, body)
}

// AppErrorResponse writes err through FromError.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := FromError(err)
	if appErr == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
