package rpc

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"

	InvokePath = "/invoke"
)

// Request is the body POSTed to a service's invoke endpoint.
type Request struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

// rawRequest is Request as received, with params left undecoded.
type rawRequest struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
}

// Response is a tagged union: Status selects Data or Message/Details.
type Response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
}

func Success(data any) (Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: StatusSuccess, Data: raw}, nil
}

func Failure(message string, details map[string]any) Response {
	return Response{Status: StatusError, Message: message, Details: details}
}
