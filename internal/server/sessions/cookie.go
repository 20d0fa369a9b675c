package sessions

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// CookieOptions tune how cookies are issued. Secure is on unless a local
// development setup turns it off.
type CookieOptions struct {
	Path   string
	Domain string
	Secure bool
}

func (o CookieOptions) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}

// SetSessionCookie issues the persistent session cookie. Max-Age is measured
// from now, the clock reading the session expiry was derived from.
func SetSessionCookie(w http.ResponseWriter, s *Session, now time.Time, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    s.ID,
		Path:     opts.path(),
		Domain:   opts.Domain,
		Expires:  s.ExpiresAt,
		MaxAge:   maxAge(s.ExpiresAt, now),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetRefreshCookie issues the refresh-token cookie (HttpOnly, Secure,
// SameSite=Strict).
func SetRefreshCookie(w http.ResponseWriter, token string, expiresAt, now time.Time, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     opts.path(),
		Domain:   opts.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAge(expiresAt, now),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	clearCookie(w, common.SessionCookieName, http.SameSiteLaxMode, opts)
}

func ClearRefreshCookie(w http.ResponseWriter, opts CookieOptions) {
	clearCookie(w, common.RefreshTokenCookieName, http.SameSiteStrictMode, opts)
}

func clearCookie(w http.ResponseWriter, name string, sameSite http.SameSite, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     opts.path(),
		Domain:   opts.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: sameSite,
	})
}

func maxAge(expiresAt, now time.Time) int {
	secs := int(expiresAt.Sub(now).Seconds())
	if secs <= 0 {
		return -1
	}
	return secs
}
