package qstash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the JWT QStash signs every delivery with.
const SignatureHeader = "Upstash-Signature"

var ErrInvalidSignature = errors.New("invalid qstash signature")

type Config struct {
	URL               string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	token             string
	currentSigningKey string
	nextSigningKey    string
	http              *resty.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	token := strings.TrimSpace(cfg.Token)
	client := &Client{
		token:             token,
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(token),
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type scheduleResponse struct {
	ScheduleID string `json:"scheduleId"`
}

// Schedule registers a cron schedule that POSTs body to destination.
func (c *Client) Schedule(ctx context.Context, destination, cron string, body []byte) (string, error) {
	destination = strings.TrimSpace(destination)
	if _, err := url.ParseRequestURI(destination); err != nil {
		return "", fmt.Errorf("invalid schedule destination: %w", err)
	}
	if strings.TrimSpace(cron) == "" {
		return "", errors.New("cron expression is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Upstash-Cron", cron).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v2/schedules/" + destination)
	if err != nil {
		return "", fmt.Errorf("create qstash schedule: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("create qstash schedule: http status=%d body=%s", resp.StatusCode(), resp.String())
	}

	// The reply is decoded whatever its Content-Type says.
	var out scheduleResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("create qstash schedule: decode response: %w", err)
	}
	if out.ScheduleID == "" {
		return "", errors.New("create qstash schedule: response without scheduleId")
	}
	return out.ScheduleID, nil
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verify checks a delivery signature against the current signing key, then
// the next one. destination may be empty to skip the subject check.
func (c *Client) Verify(signature string, body []byte, destination string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	var lastErr error
	for _, key := range []string{c.currentSigningKey, c.nextSigningKey} {
		if key == "" {
			continue
		}
		if err := verifyWithKey(signature, key, body, destination); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no signing key configured")
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(signature, key string, body []byte, destination string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("Upstash"),
		jwt.WithLeeway(5 * time.Second),
	}
	if destination != "" {
		opts = append(opts, jwt.WithSubject(destination))
	}

	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(t *jwt.Token) (any, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	want := base64.URLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != strings.TrimRight(want, "=") {
		return errors.New("body hash mismatch")
	}
	return nil
}
