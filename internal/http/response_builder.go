// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON and
// download responses with consistent headers and error bodies.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header sets a custom header.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response body", "error", err)
		b.statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: "internal error"})
	}
	b.body = append(body, '\n')
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	return b
}

// Attachment sends body as a file download.
func (b *ResponseBuilder) Attachment(filename, contentType string, body []byte) *ResponseBuilder {
	b.body = body
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = `attachment; filename="` + filename + `"`
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(b.body)))
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
