package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	metricsx "github.com/tanpawarit/parcel-scout/pkg/metrics"
)

type ClientConfig struct {
	Service string
	BaseURL string
	Timeout time.Duration
	// RatePerSecond throttles outgoing calls. Zero disables throttling.
	RatePerSecond float64
	Burst         int
}

// Client invokes named operations on one remote service.
type Client struct {
	service string
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		service: service,
		limiter: limiter,
		http: resty.New().
			SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *Client) Service() string {
	return c.service
}

// Invoke sends operation+params and returns the success payload. Every failure,
// including a panic in the transport, is returned as *Error.
func (c *Client) Invoke(ctx context.Context, operation string, params map[string]any) (data json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = transportError(c.service, operation, 0, "panic during call: %v", r)
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metricsx.RPCCalls.WithLabelValues(c.service, operation, outcome).Inc()
	}()

	if params == nil {
		params = map[string]any{}
	}

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return nil, transportError(c.service, operation, 0, "rate limit wait failed: %v", waitErr)
		}
	}

	log.Debug().
		Str("service", c.service).
		Str("operation", operation).
		Interface("params", params).
		Msg("rpc invoke")

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Request{Operation: operation, Params: params}).
		Post(InvokePath)
	if err != nil {
		rpcErr := transportError(c.service, operation, 0, "failed to communicate with service: %v", err)
		log.Error().Err(rpcErr).Msg("rpc transport failure")
		return nil, rpcErr
	}

	var envelope Response
	if decodeErr := json.Unmarshal(resp.Body(), &envelope); decodeErr != nil || !knownStatus(envelope.Status) {
		rpcErr := transportError(c.service, operation, resp.StatusCode(), "%s", describeUnparsable(resp.StatusCode(), resp.Body()))
		log.Error().Err(rpcErr).Msg("rpc response without envelope")
		return nil, rpcErr
	}

	if envelope.Status == StatusError {
		rpcErr := &Error{
			Kind:       KindRemote,
			Service:    c.service,
			Operation:  operation,
			StatusCode: resp.StatusCode(),
			Message:    envelope.Message,
			Details:    envelope.Details,
		}
		log.Error().Err(rpcErr).Int("status", resp.StatusCode()).Msg("rpc remote error")
		return nil, rpcErr
	}

	if !resp.IsSuccess() {
		return nil, transportError(c.service, operation, resp.StatusCode(), "success envelope with http status %d", resp.StatusCode())
	}

	log.Debug().Str("service", c.service).Str("operation", operation).Msg("rpc invoke succeeded")
	return envelope.Data, nil
}

func knownStatus(status string) bool {
	return status == StatusSuccess || status == StatusError
}

func describeUnparsable(status int, body []byte) string {
	const maxBody = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxBody {
		text = text[:maxBody] + "..."
	}
	if status >= 200 && status < 300 {
		return fmt.Sprintf("malformed response envelope: %q", text)
	}
	return fmt.Sprintf("unexpected http status %d: %q", status, text)
}
