// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
)

func TestDo_DecodesSuccessAndSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer tok", request.Header.Get("Authorization"))
		assert.Equal(t, "/api/thing", request.URL.Path)
		assert.Equal(t, "1", request.URL.Query().Get("id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, "x", body["name"])

		_, _ = writer.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	client := apiclient.New(server.URL+"/api/", time.Second)

	var out struct {
		ID string `json:"id"`
	}
	err := client.Do(context.Background(), apiclient.Request{
		Method: http.MethodPost,
		Path:   "/thing",
		Query:  map[string][]string{"id": {"1"}},
		Token:  "tok",
		Body:   map[string]string{"name": "x"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "1", out.ID)
}

func TestDo_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   string
		wantStatus int
	}{
		{"typed", http.StatusConflict, `{"message":"Username is taken","code":"ACCOUNT_EXISTS"}`, apperr.CodeAccountExists, http.StatusConflict},
		{"message_only", http.StatusUnauthorized, `{"message":"Invalid credentials"}`, "", http.StatusUnauthorized},
		{"html_4xx", http.StatusNotFound, `<html>nope</html>`, "", http.StatusNotFound},
		{"gateway_5xx", http.StatusBadGateway, `<html>bad gateway</html>`, apperr.CodeTransportFailure, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(tt.status)
				_, _ = writer.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := apiclient.New(server.URL, time.Second).Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: "/"}, nil)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, tt.wantCode, appError.Code)
			assert.Equal(t, tt.wantStatus, appError.HTTPStatus)
			assert.NotEmpty(t, appError.Message)
		})
	}
}

func TestDo_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := apiclient.New(url, time.Second).Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: "/"}, nil)

	assert.True(t, apperr.HasCode(err, apperr.CodeTransportFailure))
	assert.False(t, apiclient.IsStatus(err, 0))
}

func TestIsStatus(t *testing.T) {
	assert.True(t, apiclient.IsStatus(&apperr.AppError{HTTPStatus: 404}, 404))
	assert.False(t, apiclient.IsStatus(&apperr.AppError{HTTPStatus: 401}, 404))
	assert.False(t, apiclient.IsStatus(apperr.TransportFailure(404, nil), 404))
}
