package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// Invoke performs the request and schedules body cleanup
func Invoke(t *testing.T, cl *http.Client, req *http.Request) *http.Response {
	t.Helper()
	resp, err := cl.Do(req)
	require.Nil(t, err, "call failed: %v", err)
	t.Cleanup(func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	})
	return resp
}

// CheckCode asserts the response status, failing with the body text
func CheckCode(t *testing.T, resp *http.Response, expected int) *http.Response {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, expected, resp.StatusCode, "body: %s", string(body))
	}
	return resp
}

// Decode parses the JSON body into T
func Decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	var res T
	require.Nil(t, json.Unmarshal(data, &res), "body: %s", string(data))
	return res
}

// Ctx returns a test scoped context
func Ctx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	return ctx
}

// Code serves the request in-process and asserts the status
func Code(t *testing.T, e *echo.Echo, req *http.Request, expected int) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, expected, rec.Code, rec.Body.String())
	return rec
}

// RStr drains r into a string
func RStr(t *testing.T, r io.Reader) string {
	t.Helper()
	var sb strings.Builder
	_, err := io.Copy(&sb, r)
	require.Nil(t, err)
	return sb.String()
}
