package gate

import (
	"net/http"
	"time"

	"souq/cmd/internal/auth/credential"
)

// setCookies writes both halves of a fresh pair. Every rotation response must
// set both; a pair is never updated one cookie at a time.
func (g *Gate) setCookies(w http.ResponseWriter, pair credential.Pair) {
	g.setCookie(w, g.cfg.AccessCookieName, pair.AccessToken, pair.AccessExp)
	g.setCookie(w, g.cfg.RefreshCookieName, pair.RefreshToken, pair.RefreshExp)
}

// clearCookies expires both credential slots on the client.
func (g *Gate) clearCookies(w http.ResponseWriter) {
	g.expireCookie(w, g.cfg.AccessCookieName)
	g.expireCookie(w, g.cfg.RefreshCookieName)
}

func (g *Gate) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     g.cfg.CookiePath,
		Domain:   g.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   g.cfg.CookieSecure,
		SameSite: g.cfg.CookieSameSite,
	})
}

func (g *Gate) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     g.cfg.CookiePath,
		Domain:   g.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.cfg.CookieSecure,
		SameSite: g.cfg.CookieSameSite,
	})
}

// SetPair exposes cookie synchronization to the auth API handlers
// (login/refresh responses carry a fresh pair).
func (g *Gate) SetPair(w http.ResponseWriter, pair credential.Pair) { g.setCookies(w, pair) }

// ClearPair exposes cookie clearing to the auth API handlers (logout and
// terminal auth failures).
func (g *Gate) ClearPair(w http.ResponseWriter) { g.clearCookies(w) }
