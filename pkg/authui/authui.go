// Package authui serves the authentication pages of an application
// that signs its users in at a remote OAuth2 authorization server.
package authui

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gematik/zero-authui/pkg/oauth2session"
	"github.com/gematik/zero-authui/pkg/remoteauth/authweb"
	"github.com/gematik/zero-authui/pkg/util"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var (
	//go:embed *.html
	templatesFS embed.FS

	upgrader = websocket.Upgrader{}
)

type Config struct {
	Address string               `yaml:"address" validate:"required"`
	Web     authweb.Config       `yaml:"web"`
	OAuth2  oauth2session.Config `yaml:"oauth2"`
}

type Server struct {
	Config Config
	echo   *echo.Echo
}

func LoadConfigFile(path string) (*Config, error) {
	return util.LoadConfigFile[Config](path)
}

func NewFromConfigFile(path string) (*Server, error) {
	config, err := LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	return New(*config)
}

func New(cfg Config, opts ...oauth2session.Option) (*Server, error) {
	sessions, err := oauth2session.New(cfg.OAuth2, opts...)
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	web, err := authweb.New(cfg.Web, sessions)
	if err != nil {
		return nil, fmt.Errorf("create authentication ui: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	web.MountRoutes(e.Group(strings.TrimSuffix(web.BasePath(), "/")))
	e.GET(web.BasePath(), home(web, sessions))
	e.GET(web.BasePath()+"hub", hub)

	return &Server{Config: cfg, echo: e}, nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe blocks until the server fails or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	err := s.echo.Start(s.Config.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func home(web *authweb.Handler, binder authweb.Binder) echo.HandlerFunc {
	page := template.Must(template.ParseFS(templatesFS, "home.html"))

	return func(c echo.Context) error {
		_, states := binder.Bind(c)
		state, err := states.AuthenticationState(c.Request().Context())
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		err = page.Execute(&buf, map[string]interface{}{
			"Authenticated": state.User.IsAuthenticated,
			"BaseURI":       web.BaseURI(),
			"Paths":         web.ApplicationPaths(),
		})
		if err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
}

// hub echoes text messages back to the sender.
func hub(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	for {
		messageType, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("error reading message", "error", err)
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Error("error writing message", "error", err)
			return nil
		}
	}
}
