package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier("admin", "hash")
	assert.Nil(t, err)
	assert.NotNil(t, v)
}

func TestNewVerifier_Fails(t *testing.T) {
	_, err := NewVerifier("", "hash")
	assert.NotNil(t, err)
	_, err = NewVerifier("admin", "")
	assert.NotNil(t, err)
}

func TestVerify(t *testing.T) {
	h, err := Hash("olia")
	require.Nil(t, err)
	v, err := NewVerifier("admin", h)
	require.Nil(t, err)
	assert.True(t, v.Verify("admin", "olia"))
	assert.False(t, v.Verify("admin", "wrong"))
	assert.False(t, v.Verify("other", "olia"))
	assert.False(t, v.Verify("", ""))
}

func TestSafeNextPath(t *testing.T) {
	tests := []struct {
		next     string
		expected string
	}{
		{next: "/jobs", expected: "/jobs"},
		{next: "/", expected: "/"},
		{next: "", expected: "/"},
		{next: "//evil.com", expected: "/"},
		{next: "/\\evil.com", expected: "/"},
		{next: "http://evil.com", expected: "/"},
		{next: "jobs", expected: "/"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, SafeNextPath(tc.next), "next: %s", tc.next)
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		xrw      string
		accept   string
		expected bool
	}{
		{xrw: "XMLHttpRequest", accept: "", expected: true},
		{xrw: "", accept: "application/json", expected: true},
		{xrw: "", accept: "text/html,application/json", expected: false},
		{xrw: "", accept: "text/html", expected: false},
		{xrw: "", accept: "", expected: false},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		if tc.xrw != "" {
			req.Header.Set("X-Requested-With", tc.xrw)
		}
		if tc.accept != "" {
			req.Header.Set(echo.HeaderAccept, tc.accept)
		}
		e := echo.New()
		c := e.NewContext(req, httptest.NewRecorder())
		assert.Equal(t, tc.expected, WantsJSON(c), "accept: %s", tc.accept)
	}
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(sessions.NewCookieStore([]byte("test-key"))))
	e.Use(Middleware(func(c echo.Context) bool { return c.Path() == "/login" }))
	e.GET("/jobs", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/login", func(c echo.Context) error {
		if err := SetAuthenticated(c); err != nil {
			return err
		}
		return c.String(http.StatusOK, "in")
	})
	e.GET("/logout", func(c echo.Context) error {
		if err := ClearAuthenticated(c); err != nil {
			return err
		}
		return c.String(http.StatusOK, "out")
	})
	return e
}

func TestMiddleware_RedirectsBrowser(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "/login?next=%2Fjobs", resp.Header().Get("Location"))
}

func TestMiddleware_JSON401(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "Unauthorized")
}

func TestMiddleware_Skipper(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMiddleware_SessionRoundTrip(t *testing.T) {
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	cookies := resp.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp = httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp = httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	for _, ck := range resp.Result().Cookies() {
		req.AddCookie(ck)
	}
	resp = httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusFound, resp.Code)
}
