package authweb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gematik/zero-authui/pkg/remoteauth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	// absolute url the application is served from
	BaseURL   string                      `yaml:"base_url" validate:"required,url"`
	Paths     remoteauth.ApplicationPaths `yaml:"paths"`
	Fragments FragmentFiles               `yaml:"fragments"`
}

// Binder hands out the authentication service and state provider for
// a single request.
type Binder interface {
	Bind(c echo.Context) (remoteauth.Service, remoteauth.StateProvider)
}

type BinderFunc func(c echo.Context) (remoteauth.Service, remoteauth.StateProvider)

func (f BinderFunc) Bind(c echo.Context) (remoteauth.Service, remoteauth.StateProvider) {
	return f(c)
}

type Handler struct {
	baseURL   *url.URL
	paths     remoteauth.ApplicationPaths
	routes    map[remoteauth.Action]string
	binder    Binder
	fragments *Fragments
	redirect  *template.Template
}

func New(cfg Config, binder Binder) (*Handler, error) {
	if binder == nil {
		return nil, errors.New("binder is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !baseURL.IsAbs() {
		return nil, fmt.Errorf("base url '%s' is not absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	fragments, err := LoadFragments(cfg.Fragments)
	if err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}

	paths := cfg.Paths.Merge(remoteauth.DefaultApplicationPaths())
	routes, err := actionRoutes(baseURL, paths)
	if err != nil {
		return nil, err
	}

	return &Handler{
		baseURL:   baseURL,
		paths:     paths,
		routes:    routes,
		binder:    binder,
		fragments: fragments,
		redirect:  template.Must(template.ParseFS(templatesFS, "templates/redirect.html")),
	}, nil
}

func (h *Handler) ApplicationPaths() remoteauth.ApplicationPaths {
	return h.paths
}

func (h *Handler) BaseURI() string {
	return h.baseURL.String()
}

// BasePath is the path component of the base url, always ending in '/'.
func (h *Handler) BasePath() string {
	return h.baseURL.Path
}

func ErrorLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			slog.Error("Error", "error", err, "path", c.Path(), "remote_addr", c.RealIP())
		}
		return err
	}
}

// actionRoutes resolves every application path against the base url and
// returns it relative to the base path, e.g. "/authentication/login".
func actionRoutes(baseURL *url.URL, paths remoteauth.ApplicationPaths) (map[remoteauth.Action]string, error) {
	byAction := map[remoteauth.Action]string{
		remoteauth.ActionLogIn:           paths.LogInPath,
		remoteauth.ActionLogInCallback:   paths.LogInCallbackPath,
		remoteauth.ActionLogInFailed:     paths.LogInFailedPath,
		remoteauth.ActionLogOut:          paths.LogOutPath,
		remoteauth.ActionLogOutCallback:  paths.LogOutCallbackPath,
		remoteauth.ActionLogOutFailed:    paths.LogOutFailedPath,
		remoteauth.ActionLogOutSucceeded: paths.LogOutSucceededPath,
		remoteauth.ActionRegister:        paths.RegisterPath,
		remoteauth.ActionProfile:         paths.ProfilePath,
	}

	routes := make(map[remoteauth.Action]string, len(byAction))
	seen := make(map[string]remoteauth.Action, len(byAction))
	for _, action := range remoteauth.Actions() {
		ref, err := url.Parse(byAction[action])
		if err != nil {
			return nil, fmt.Errorf("parse %s path: %w", action, err)
		}
		resolved := baseURL.ResolveReference(ref)
		if resolved.Host != baseURL.Host || !strings.HasPrefix(resolved.Path, baseURL.Path) {
			return nil, fmt.Errorf("%s path '%s' is not below base url '%s'", action, byAction[action], baseURL)
		}
		route := "/" + strings.TrimPrefix(resolved.Path, baseURL.Path)
		if other, ok := seen[route]; ok {
			return nil, fmt.Errorf("%s and %s share the path '%s'", other, action, route)
		}
		seen[route] = action
		routes[action] = route
	}
	return routes, nil
}

// MountRoutes registers one route per application path. The group must
// sit at the base path of the base url. Requests for unknown actions
// below "<base path>authentication/" are answered with 400.
func (h *Handler) MountRoutes(g *echo.Group) {
	methods := []string{http.MethodGet, http.MethodPost}
	mw := []echo.MiddlewareFunc{middleware.Logger(), ErrorLogMiddleware}

	for action, route := range h.routes {
		g.Match(methods, route, h.actionHandler(action), mw...)
	}
	g.Match(methods, "/"+remoteauth.DefaultPathPrefix+"/:action", h.ActionEndpoint, mw...)
}

// ActionEndpoint serves "<base path>authentication/:action". Actions
// configured with a different path are not found here.
func (h *Handler) ActionEndpoint(c echo.Context) error {
	action, err := remoteauth.ParseAction(c.Param("action"))
	if err != nil {
		return toHTTPError(err)
	}
	if h.routes[action] != "/"+remoteauth.DefaultPathPrefix+"/"+action.String() {
		return echo.ErrNotFound
	}
	return h.dispatch(c, action)
}

func (h *Handler) actionHandler(action remoteauth.Action) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.dispatch(c, action)
	}
}

func (h *Handler) dispatch(c echo.Context, action remoteauth.Action) error {
	service, states := h.binder.Bind(c)
	nav := &requestNavigator{c: c, baseURL: h.baseURL}
	bridge := &requestBridge{c: c, page: h.redirect}

	d, err := remoteauth.NewDispatcher(service, states, nav, bridge, remoteauth.WithApplicationPaths(h.paths))
	if err != nil {
		return err
	}

	view, err := d.Dispatch(c.Request().Context(), action)
	if err != nil {
		return toHTTPError(err)
	}

	if c.Response().Committed {
		// navigated or redirected away
		return nil
	}

	var buf bytes.Buffer
	err = h.fragments.Render(&buf, view, FragmentData{
		Action:  action.String(),
		Message: view.Message,
		BaseURI: nav.BaseURI(),
		Paths:   h.paths,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", action, err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, remoteauth.ErrInvalidAction), errors.Is(err, remoteauth.ErrOpenRedirectRejected):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, remoteauth.ErrInvalidState):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	default:
		return err
	}
}

type requestNavigator struct {
	c       echo.Context
	baseURL *url.URL
}

func (n *requestNavigator) BaseURI() string {
	return n.baseURL.String()
}

func (n *requestNavigator) CurrentURI() string {
	current := url.URL{
		Scheme: n.baseURL.Scheme,
		Host:   n.baseURL.Host,
	}
	return current.String() + n.c.Request().URL.RequestURI()
}

func (n *requestNavigator) ToAbsoluteURI(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return n.BaseURI() + strings.TrimPrefix(path, "/")
	}
	return n.baseURL.ResolveReference(ref).String()
}

func (n *requestNavigator) NavigateTo(uri string) {
	if err := n.c.Redirect(http.StatusFound, n.ToAbsoluteURI(uri)); err != nil {
		slog.Error("Failed to navigate", "uri", uri, "error", err)
	}
}

// requestBridge answers with a page that replaces the current document
// location, so the callback url does not stay in the browser history.
type requestBridge struct {
	c    echo.Context
	page *template.Template
}

func (b *requestBridge) Redirect(_ context.Context, uri string) error {
	var buf bytes.Buffer
	if err := b.page.Execute(&buf, uri); err != nil {
		return err
	}
	b.c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return b.c.HTMLBlob(http.StatusOK, buf.Bytes())
}
