// Package response provides the uniform envelope returned by every
// repository operation.
package response

import (
	"errors"
	"time"

	"go-kv-commerce/internal/apperr"
)

type ErrorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    []string          `json:"fields,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Detail    string            `json:"detail,omitempty"` // development mode only
	Operation string            `json:"operation"`
	Timestamp time.Time         `json:"timestamp"`
}

type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Operation string     `json:"operation"`
	Timestamp time.Time  `json:"timestamp"`
}

// Builder stamps envelopes. Development mode attaches wrapped cause text to
// failures; production strips it.
type Builder struct {
	Development bool
}

func (b Builder) OK(op string, data any) Envelope {
	return Envelope{
		Success:   true,
		Data:      data,
		Operation: op,
		Timestamp: time.Now().UTC(),
	}
}

func (b Builder) Fail(op string, err error, ctx map[string]string) Envelope {
	now := time.Now().UTC()
	body := &ErrorBody{
		Code:      apperr.CodeDatabase,
		Message:   "internal error",
		Context:   ctx,
		Operation: op,
		Timestamp: now,
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Code = ae.Code
		body.Message = ae.Message
		body.Fields = ae.Fields
		if b.Development && ae.Cause != nil {
			body.Detail = ae.Cause.Error()
		}
	} else if err != nil && b.Development {
		body.Detail = err.Error()
	}

	return Envelope{
		Success:   false,
		Error:     body,
		Operation: op,
		Timestamp: now,
	}
}
