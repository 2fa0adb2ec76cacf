package auth

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName = "voxtext_session"
	sessionAuth = "authenticated"
	sessionAge  = 7 * 24 * 60 * 60
)

// Verifier checks submitted credentials against the configured ones
type Verifier struct {
	user         string
	passwordHash string
}

// NewVerifier creates credentials verifier.
// passwordHash is a bcrypt credential made with Hash
func NewVerifier(user, passwordHash string) (*Verifier, error) {
	if user == "" {
		return nil, errors.New("no auth user")
	}
	if passwordHash == "" {
		return nil, errors.New("no auth password hash")
	}
	return &Verifier{user: user, passwordHash: passwordHash}, nil
}

// Verify implements verify(credential, secret) -> bool
func (v *Verifier) Verify(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(v.user)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(v.passwordHash), []byte(password)) == nil
	return userOK && passOK
}

// Hash implements hash(secret) -> credential
func Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "can't hash secret")
	}
	return string(b), nil
}

// SetAuthenticated marks the session as logged in
func SetAuthenticated(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return errors.Wrap(err, "can't get session")
	}
	sess.Options = &sessions.Options{Path: "/", MaxAge: sessionAge, HttpOnly: true,
		SameSite: http.SameSiteLaxMode}
	sess.Values[sessionAuth] = true
	return sess.Save(c.Request(), c.Response())
}

// ClearAuthenticated drops the session
func ClearAuthenticated(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return errors.Wrap(err, "can't get session")
	}
	sess.Options = &sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true}
	sess.Values[sessionAuth] = false
	return sess.Save(c.Request(), c.Response())
}

// IsAuthenticated checks the session flag
func IsAuthenticated(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	v, ok := sess.Values[sessionAuth].(bool)
	return ok && v
}

// Middleware gates routes behind the session.
// API style requests get 401 JSON, browser requests a login redirect
func Middleware(skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			if IsAuthenticated(c) {
				return next(c)
			}
			if WantsJSON(c) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request().URL.Path))
		}
	}
}

// WantsJSON decides between API and browser style failure responses
func WantsJSON(c echo.Context) bool {
	if c.Request().Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) &&
		!strings.Contains(accept, echo.MIMETextHTML)
}

// SafeNextPath restricts post-login redirects to same-origin relative paths
func SafeNextPath(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") &&
		!strings.Contains(next, "\\") {
		return next
	}
	return "/"
}
