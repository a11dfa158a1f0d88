// Package docgen is the Go client of the document generation service.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/service"
	"github.com/go-resty/resty/v2"
)

type (
	GenerateRequest = service.GenerateRequest
	GenerateResult  = service.GenerateResult
	Token           = service.Token
)

// ErrEmptyToken is returned by Download when no token is given.
var ErrEmptyToken = errors.New("download token is empty")

// Error is a failed API call.
type Error struct {
	Status  int         `json:"-"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("docgen: %d %s: %s", e.Status, e.Kind, e.Message)
}

// Client calls the HTTP API as one actor.
type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

// WithActor sets the identity headers the gateway would normally set.
func WithActor(id, role string) Option {
	return func(c *resty.Client) {
		c.SetHeader("X-Actor-Id", id)
		c.SetHeader("X-Actor-Role", role)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *resty.Client) {
		c.SetTimeout(timeout)
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Minute).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}

	return &Client{http: c}
}

// Generate asks for a document. Failed generations return the result, with
// its Error set, along with an *Error.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var result GenerateResult
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post("/v1/documents")
	if err != nil {
		return nil, err
	}

	if res.IsError() {
		apiErr := &Error{Status: res.StatusCode(), Message: res.Status()}
		if result.Error != nil {
			apiErr.Kind = result.Error.Kind
			apiErr.Message = result.Error.Message
		}
		return &result, apiErr
	}

	return &result, nil
}

// IssueToken returns a download token for a document.
func (c *Client) IssueToken(ctx context.Context, documentID string) (*Token, error) {
	var token Token
	var apiErr Error
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", documentID).
		SetResult(&token).
		SetError(&apiErr).
		Post("/v1/documents/{id}/token")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		apiErr.Status = res.StatusCode()
		return nil, &apiErr
	}

	return &token, nil
}

// Download fetches the PDF bytes of a document.
func (c *Client) Download(ctx context.Context, documentID, token string) ([]byte, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	var apiErr Error
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", documentID).
		SetQueryParam("token", token).
		SetHeader("Accept", "application/pdf").
		SetError(&apiErr).
		Get("/v1/documents/{id}/download")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		apiErr.Status = res.StatusCode()
		return nil, &apiErr
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &Error{Status: res.StatusCode(), Message: res.Status()}
	}

	return res.Body(), nil
}
