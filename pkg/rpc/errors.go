package rpc

import (
	"encoding/json"
	"fmt"
)

type ErrorKind string

const (
	// KindTransport covers connection failures, timeouts and replies that carry no envelope.
	KindTransport ErrorKind = "transport"
	// KindRemote is a well-formed error envelope sent by the service.
	KindRemote ErrorKind = "remote"
)

type Error struct {
	Kind       ErrorKind
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Details    map[string]any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRemote:
		if len(e.Details) == 0 {
			return fmt.Sprintf("rpc %s.%s: remote error: %s", e.Service, e.Operation, e.Message)
		}
		details, _ := json.Marshal(e.Details)
		return fmt.Sprintf("rpc %s.%s: remote error: %s | details: %s", e.Service, e.Operation, e.Message, details)
	default:
		return fmt.Sprintf("rpc %s.%s: transport error: %s", e.Service, e.Operation, e.Message)
	}
}

func transportError(service, operation string, status int, format string, args ...any) *Error {
	return &Error{
		Kind:       KindTransport,
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
	}
}
