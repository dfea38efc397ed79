package echo

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/auth"
	"github.com/cmskit/clientlogin/config"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/provider"
	"github.com/cmskit/clientlogin/sessionstore"
)

// SessionCookieName identifies the browser session across the OAuth2
// redirect round trip.
const SessionCookieName = "clientlogin_sid"

// sessionCookieTTL outlives the longest login flow by a wide margin.
const sessionCookieTTL = 30 * 24 * time.Hour

// ClientLoginAPI exposes the authentication flows over HTTP.
type ClientLoginAPI struct {
	auth         *auth.Authenticator
	registry     *provider.Registry
	basePath     string
	responseNoun string
}

// NewClientLoginAPI initializes the authentication API. basePath and
// responseNoun default to "authenticate".
func NewClientLoginAPI(authenticator *auth.Authenticator, registry *provider.Registry, basePath, responseNoun string) *ClientLoginAPI {
	if basePath == "" {
		basePath = "authenticate"
	}
	if responseNoun == "" {
		responseNoun = "authenticate"
	}
	return &ClientLoginAPI{
		auth:         authenticator,
		registry:     registry,
		basePath:     basePath,
		responseNoun: responseNoun,
	}
}

// RegisterRoutes registers the authentication routes.
func (a *ClientLoginAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/" + a.basePath)
	g.GET("/login", a.LoginHandler)
	g.POST("/login", a.LoginHandler)
	g.GET("/endpoint", a.EndpointHandler)
	g.POST("/endpoint", a.EndpointHandler)
	g.GET("/logout", a.LogoutHandler)
}

// LoginHandler starts a login flow for the requested provider. OAuth2
// providers answer with a redirect to the provider; the local provider
// answers with the credential form until credentials are posted.
func (a *ClientLoginAPI) LoginHandler(c echo.Context) error {
	name, err := a.registry.ResolveProviderName(c.Request())
	if err != nil {
		return a.renderError(c, err)
	}

	req := a.buildRequest(c, name)
	outcome, err := a.auth.Login(c.Request().Context(), req)
	if err != nil {
		return a.renderError(c, err)
	}
	return a.renderOutcome(c, req, outcome)
}

// EndpointHandler completes a login flow: the OAuth2 callback, or the posted
// local credentials. The provider name rides on the response noun query
// parameter, put there when the redirect URI was constructed.
func (a *ClientLoginAPI) EndpointHandler(c echo.Context) error {
	name := config.NormalizeProviderName(c.QueryParam(a.responseNoun))
	if name == "" {
		resolved, err := a.registry.ResolveProviderName(c.Request())
		if err != nil {
			return a.renderError(c, err)
		}
		name = resolved
	}

	req := a.buildRequest(c, name)
	outcome, err := a.auth.Process(c.Request().Context(), req)
	if err != nil {
		return a.renderError(c, err)
	}
	return a.renderOutcome(c, req, outcome)
}

// LogoutHandler ends the visitor's session and clears the access-token
// cookie. Logging out while logged out succeeds.
func (a *ClientLoginAPI) LogoutHandler(c echo.Context) error {
	req := a.buildRequest(c, "")
	outcome, err := a.auth.Logout(c.Request().Context(), req)
	if err != nil {
		return a.renderError(c, err)
	}
	return a.renderOutcome(c, req, outcome)
}

// buildRequest extracts everything the flows need from the HTTP request and
// ensures the browser session cookie exists.
func (a *ClientLoginAPI) buildRequest(c echo.Context, providerName string) auth.Request {
	req := auth.Request{
		SessionID: a.sessionID(c),
		Provider:  providerName,
		ReturnURL: returnURL(c),
		Code:      c.QueryParam("code"),
		State:     c.QueryParam("state"),
		Username:  c.FormValue("username"),
		Password:  c.FormValue("password"),
	}
	if cookie, err := c.Cookie(sessionstore.AccessTokenName); err == nil {
		req.CookieToken = cookie.Value
	}
	return req
}

// sessionID reads the browser session cookie, minting one when absent.
func (a *ClientLoginAPI) sessionID(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sid := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

func returnURL(c echo.Context) string {
	u := c.QueryParam("redirect")
	if u == "" {
		u = c.QueryParam("returnUrl")
	}
	if u == "" || u[0] != '/' {
		// Only relative return targets; anything else invites open redirects.
		return "/"
	}
	return u
}

// renderOutcome writes the access-token cookie when the flow produced or
// cleared one, then redirects or renders the credential form.
func (a *ClientLoginAPI) renderOutcome(c echo.Context, req auth.Request, outcome *auth.Outcome) error {
	if outcome.Cookie != nil {
		cookie := &http.Cookie{
			Name:     sessionstore.AccessTokenName,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
		if outcome.Cookie.Clear {
			cookie.MaxAge = -1
		} else {
			cookie.Value = outcome.Cookie.Value
			cookie.Expires = outcome.Cookie.Expires
		}
		c.SetCookie(cookie)
	}

	if outcome.ShowLoginForm {
		return c.HTML(http.StatusOK, loginFormHTML(a.basePath, req.Provider, req.ReturnURL))
	}

	target := outcome.RedirectURL
	if target == "" {
		target = "/"
	}
	return c.Redirect(http.StatusFound, target)
}

// renderError maps flow errors to their status codes. Storage and
// configuration details never reach the visitor.
func (a *ClientLoginAPI) renderError(c echo.Context, err error) error {
	status := clerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Authentication request failed")
	} else {
		log.Info().Err(err).Int("status", status).Msg("Authentication request rejected")
	}
	return c.JSON(status, echo.Map{"error": clerrors.PublicMessage(err)})
}

// loginFormHTML is the minimal credential form for the local provider. Host
// applications normally render their own and post to the endpoint directly.
func loginFormHTML(basePath, providerName, returnTo string) string {
	action := "/" + basePath + "/endpoint?provider=" + url.QueryEscape(providerName) +
		"&returnUrl=" + url.QueryEscape(returnTo)
	return `<!DOCTYPE html>
<html><body>
<form method="post" action="` + action + `">
<label>User name <input type="text" name="username"></label>
<label>Password <input type="password" name="password"></label>
<button type="submit">Log in</button>
</form>
</body></html>`
}
