package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	MsgUnauthorized  = "Unauthorized"
	MsgEventNotFound = "Unable to get event"
	MsgInternalError = "Something broken! Please contact support."
	MsgRouteNotFound = "Page not found or has been deleted."
	HelpCheckDocs    = "Please check the docs."
	SuccessTrue      = "true"
	SuccessFalse     = "false"
)

// Response is the uniform JSON envelope every endpoint answers with.
// Success is a string flag to stay wire-compatible with the identity
// service and existing API consumers.
type Response struct {
	Success string `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Help    string `json:"help,omitempty"`
}

func SuccessResponse(c *ginext.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Success: SuccessTrue,
		Message: message,
		Data:    data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{
		Success: SuccessTrue,
		Message: message,
		Data:    data,
	})
}

// SoftFailResponse reports a non-error negative outcome (e.g. an update that
// matched no rows) with a 200 status and a false success flag.
func SoftFailResponse(c *ginext.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Success: SuccessFalse,
		Message: message,
		Data:    data,
	})
}

func BadRequestError(c *ginext.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: SuccessFalse,
		Message: message,
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: SuccessFalse,
		Message: MsgUnauthorized,
	})
}

func NotFoundError(c *ginext.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: SuccessFalse,
		Message: message,
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: SuccessFalse,
		Error:   MsgInternalError,
		Help:    HelpCheckDocs,
	})
}

func RouteNotFound(c *ginext.Context) {
	c.JSON(http.StatusNotFound, Response{
		Success: SuccessFalse,
		Error:   MsgRouteNotFound,
		Help:    HelpCheckDocs,
	})
}
