// Package response carries the uniform REST envelope.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the envelope every REST endpoint answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	CodeSuccess     = 0
	CodeError       = -1
	CodeBadRequest  = 400
	CodeNotFound    = 404
	CodeTooMany     = 429
	CodeServerError = 500
)

const (
	MsgSuccess     = "success"
	MsgAccepted    = "accepted"
	MsgNotFound    = "not found"
	MsgServerError = "server error"
)

// Success answers 200 with data.
func Success(c *fiber.Ctx, data any) error {
	return c.JSON(Response{
		Code:    CodeSuccess,
		Message: MsgSuccess,
		Data:    data,
	})
}

// Accepted answers 202 with data; used when work continues after the
// response.
func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Code:    CodeSuccess,
		Message: MsgAccepted,
		Data:    data,
	})
}

// BadRequest answers 400 with the rejection reason.
func BadRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{
		Code:    CodeBadRequest,
		Message: message,
	})
}

// NotFound answers 404.
func NotFound(c *fiber.Ctx, message string) error {
	if message == "" {
		message = MsgNotFound
	}
	return c.Status(fiber.StatusNotFound).JSON(Response{
		Code:    CodeNotFound,
		Message: message,
	})
}

// TooManyRequests answers 429; used when the submission pool is full.
func TooManyRequests(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(Response{
		Code:    CodeTooMany,
		Message: message,
	})
}

// ServerError answers 500.
func ServerError(c *fiber.Ctx, message string) error {
	if message == "" {
		message = MsgServerError
	}
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Code:    CodeServerError,
		Message: message,
	})
}

// ErrorWithCode answers with an arbitrary status and matching envelope
// code.
func ErrorWithCode(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{
		Code:    status,
		Message: message,
	})
}
