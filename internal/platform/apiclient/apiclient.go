// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apiclient is the client side of the Unpuff API's JSON conventions.

It turns every outcome of a call into one of three shapes:

  - 2xx: the body decoded into the caller's target.
  - non-2xx: an [apperr.AppError] rebuilt from the {message, code, details}
    envelope, with HTTPStatus set. Code is empty when the server sent none.
  - no response: [apperr.CodeTransportFailure].

Callers never inspect message text to tell errors apart.
*/
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 16 << 10

// Client calls one API root.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. "http://localhost:8080/api").
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client using httpClient for transport.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the API root the client was built with.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// URL resolves path against the API root.
func (client *Client) URL(path string, query url.Values) string {
	target := client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Token is sent as a bearer credential when not empty.
	Token string
	// Body is JSON-encoded when not nil.
	Body any
}

// envelope mirrors respond.ErrorEnvelope.
type envelope struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Details []apperr.FieldError `json:"details"`
}

// Do performs the call and decodes a 2xx body into out (which may be nil).
func (client *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("apiclient_encode_failed: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, req.Method, client.URL(req.Path, req.Query), body)
	if err != nil {
		return fmt.Errorf("apiclient_request_build_failed: %w", err)
	}
	httpRequest.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	if req.Body != nil {
		httpRequest.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	if req.Token != "" {
		httpRequest.Header.Set(constants.HeaderAuthorization, constants.AuthScheme+" "+req.Token)
	}

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return apperr.TransportFailure(0, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return decodeError(response)
	}

	if out == nil || response.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return apperr.TransportFailure(response.StatusCode, fmt.Errorf("apiclient_decode_failed: %w", err))
	}
	return nil
}

// decodeError rebuilds the server's AppError from a non-2xx response.
func decodeError(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

	var payload envelope
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		// Proxies and gateways answer with HTML or nothing at all
		if response.StatusCode >= 500 {
			return apperr.TransportFailure(response.StatusCode, fmt.Errorf("unexpected status %d", response.StatusCode))
		}
		payload.Message = http.StatusText(response.StatusCode)
	}

	return &apperr.AppError{
		Code:       payload.Code,
		Message:    payload.Message,
		HTTPStatus: response.StatusCode,
		Details:    payload.Details,
	}
}

// IsStatus reports whether err is an API error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var appError *apperr.AppError
	return errors.As(err, &appError) && appError.Code != apperr.CodeTransportFailure && appError.HTTPStatus == status
}
