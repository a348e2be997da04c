// Package oauth2session is a server side remoteauth.Service. It runs the
// OAuth2 authorization code flow with PKCE against one authorization
// server and keeps the tokens in a session referenced by a sealed cookie.
package oauth2session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gematik/zero-authui/pkg/nonce"
	"github.com/gematik/zero-authui/pkg/remoteauth"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
)

type Config struct {
	AuthorizationServer   AuthorizationServerConfig `yaml:"authorization_server" validate:"required"`
	EncryptKeyString      string                    `yaml:"encrypt_key" validate:"required,base64"`
	SignKeyString         string                    `yaml:"sign_key" validate:"required,base64"`
	CookieName            string                    `yaml:"cookie_name" validate:"required"`
	ProductionGradeCookie bool                      `yaml:"production_grade_cookie"`
	// how long a started sign-in or provider sign-out may take, defaults
	// to nonce.DefaultValidity
	StateValidity time.Duration `yaml:"state_validity" validate:"gte=0"`
}

type AuthorizationServerConfig struct {
	Issuer       string `yaml:"issuer" validate:"required,url"`
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret"`
	// the login-callback page of the application
	RedirectURI string `yaml:"redirect_uri" validate:"required,url"`
	// the logout-callback page of the application
	PostLogoutRedirectURI string `yaml:"post_logout_redirect_uri" validate:"omitempty,url"`
	// default to <issuer>/auth and <issuer>/token
	AuthURL  string `yaml:"auth_url" validate:"omitempty,url"`
	TokenURL string `yaml:"token_url" validate:"omitempty,url"`
	// sign-out at the provider is skipped when empty
	EndSessionURL string   `yaml:"end_session_url" validate:"omitempty,url"`
	Scopes        []string `yaml:"scopes"`
}

type Option func(*Manager) error

func WithSessionManager(sm SessionManager) Option {
	return func(m *Manager) error {
		m.sessions = sm
		return nil
	}
}

func WithNonceService(ns nonce.Service) Option {
	return func(m *Manager) error {
		m.nonces = ns
		return nil
	}
}

type Manager struct {
	cfg            Config
	sessions       SessionManager
	nonces         nonce.Service
	cookieTemplate *http.Cookie
	seal           func([]byte) ([]byte, error)
	open           func([]byte) ([]byte, error)
	oauth2Client   *oauth2.Config
}

func New(cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{cfg: cfg}

	if cfg.ProductionGradeCookie {
		m.cookieTemplate = &http.Cookie{
			Name:     fmt.Sprintf("__Host-%s", cfg.CookieName),
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
	} else {
		m.cookieTemplate = &http.Cookie{
			Name:     cfg.CookieName,
			Path:     "/",
			Secure:   false,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
	}

	encryptKey, err := base64.StdEncoding.DecodeString(cfg.EncryptKeyString)
	if err != nil {
		return nil, fmt.Errorf("decode encrypt key: %w", err)
	}
	if len(encryptKey) != 32 {
		return nil, fmt.Errorf("encrypt key must be 256 bits, got %d", len(encryptKey)*8)
	}
	signKey, err := base64.StdEncoding.DecodeString(cfg.SignKeyString)
	if err != nil {
		return nil, fmt.Errorf("decode sign key: %w", err)
	}
	if len(signKey) < 32 {
		return nil, fmt.Errorf("sign key must be at least 256 bits, got %d", len(signKey)*8)
	}
	m.seal = SealFunc(encryptKey, signKey)
	m.open = OpenFunc(encryptKey, signKey)

	as := cfg.AuthorizationServer
	authURL := as.AuthURL
	if authURL == "" {
		authURL = as.Issuer + "/auth"
	}
	tokenURL := as.TokenURL
	if tokenURL == "" {
		tokenURL = as.Issuer + "/token"
	}
	m.oauth2Client = &oauth2.Config{
		ClientID:     as.ClientID,
		ClientSecret: as.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		RedirectURL: as.RedirectURI,
		Scopes:      as.Scopes,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	stateValidity := cfg.StateValidity
	if stateValidity == 0 {
		stateValidity = nonce.DefaultValidity
	}
	if m.sessions == nil {
		m.sessions = NewMemorySessionManager(stateValidity)
	}
	if m.nonces == nil {
		if m.nonces, err = nonce.NewMemoryService(nonce.Options{Validity: stateValidity}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Bind returns the service and state provider for one request.
func (m *Manager) Bind(c echo.Context) (remoteauth.Service, remoteauth.StateProvider) {
	rs := &requestService{m: m, c: c}
	return rs, rs
}

type requestService struct {
	m *Manager
	c echo.Context
}

func failure(message string) *remoteauth.AuthenticationResult {
	return &remoteauth.AuthenticationResult{Status: remoteauth.StatusFailure, ErrorMessage: message}
}

func (s *requestService) SignIn(ctx context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	state, err := s.m.nonces.Issue()
	if err != nil {
		return nil, fmt.Errorf("issue state: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	session, err := s.m.sessions.CreateSession(state.Value, verifier, returnURLOf(actx.State))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	authURL := s.m.oauth2Client.AuthCodeURL(session.State, oauth2.S256ChallengeOption(verifier))
	slog.Info("Redirecting to authorization server", "auth_url", authURL)
	if err := s.c.Redirect(http.StatusFound, authURL); err != nil {
		return nil, err
	}

	return &remoteauth.AuthenticationResult{Status: remoteauth.StatusRedirect}, nil
}

func (s *requestService) CompleteSignIn(ctx context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	query, err := callbackQuery(actx.URL)
	if err != nil {
		return nil, err
	}
	if msg := providerError(query); msg != "" {
		return failure(msg), nil
	}
	state := query.Get("state")
	if state == "" {
		return &remoteauth.AuthenticationResult{Status: remoteauth.StatusOperationCompleted}, nil
	}

	session, result := s.redeem(state)
	if result != nil {
		return result, nil
	}

	token, err := s.m.oauth2Client.Exchange(ctx, query.Get("code"), oauth2.VerifierOption(session.CodeVerifier))
	if err != nil {
		slog.Error("Failed to exchange code for token", "error", err)
		_ = s.m.sessions.DeleteSessionByID(session.ID)
		return failure(fmt.Sprintf("Failed to exchange code for token: %v", err)), nil
	}

	session.AccessToken = token.AccessToken
	session.AccessTokenExpiresAt = token.Expiry
	session.RefreshToken = token.RefreshToken
	if idToken, ok := token.Extra("id_token").(string); ok {
		session.IDToken = idToken
	}
	session.CodeVerifier = ""

	if err := s.m.sessions.UpdateSession(session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := s.setCookie(session.ID); err != nil {
		return nil, err
	}

	return &remoteauth.AuthenticationResult{
		Status: remoteauth.StatusSuccess,
		State:  &remoteauth.OperationState{ReturnURL: session.ReturnURL},
	}, nil
}

func (s *requestService) SignOut(ctx context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	var idToken string
	if session, err := s.currentSession(); err == nil {
		idToken = session.IDToken
		if err := s.m.sessions.DeleteSessionByID(session.ID); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
	}
	s.clearCookie()

	as := s.m.cfg.AuthorizationServer
	if as.EndSessionURL == "" {
		return &remoteauth.AuthenticationResult{Status: remoteauth.StatusSuccess, State: actx.State}, nil
	}

	state, err := s.m.nonces.Issue()
	if err != nil {
		return nil, fmt.Errorf("issue state: %w", err)
	}
	if _, err := s.m.sessions.CreateSession(state.Value, "", returnURLOf(actx.State)); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", as.ClientID)
	params.Set("state", state.Value)
	if as.PostLogoutRedirectURI != "" {
		params.Set("post_logout_redirect_uri", as.PostLogoutRedirectURI)
	}
	if idToken != "" {
		params.Set("id_token_hint", idToken)
	}
	endSessionURL := as.EndSessionURL + "?" + params.Encode()

	slog.Info("Redirecting to end session endpoint", "url", as.EndSessionURL)
	if err := s.c.Redirect(http.StatusFound, endSessionURL); err != nil {
		return nil, err
	}
	return &remoteauth.AuthenticationResult{Status: remoteauth.StatusRedirect}, nil
}

func (s *requestService) CompleteSignOut(ctx context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	query, err := callbackQuery(actx.URL)
	if err != nil {
		return nil, err
	}
	if msg := providerError(query); msg != "" {
		return failure(msg), nil
	}
	state := query.Get("state")
	if state == "" {
		return &remoteauth.AuthenticationResult{Status: remoteauth.StatusOperationCompleted}, nil
	}

	session, result := s.redeem(state)
	if result != nil {
		return result, nil
	}
	if err := s.m.sessions.DeleteSessionByID(session.ID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}

	return &remoteauth.AuthenticationResult{
		Status: remoteauth.StatusSuccess,
		State:  &remoteauth.OperationState{ReturnURL: session.ReturnURL},
	}, nil
}

// AuthenticationState reports an authenticated user while the session
// cookie refers to a session holding an unexpired access token.
func (s *requestService) AuthenticationState(ctx context.Context) (*remoteauth.AuthenticationState, error) {
	session, err := s.currentSession()
	if err != nil {
		slog.Debug("No session", "error", err)
		return &remoteauth.AuthenticationState{}, nil
	}

	authenticated := session.AccessToken != "" &&
		(session.AccessTokenExpiresAt.IsZero() || session.AccessTokenExpiresAt.After(time.Now()))

	return &remoteauth.AuthenticationState{
		User: remoteauth.User{IsAuthenticated: authenticated},
	}, nil
}

// redeem consumes the state nonce and returns the session started with
// it, or a failure result. A session whose state cannot be redeemed is
// deleted.
func (s *requestService) redeem(state string) (*Session, *remoteauth.AuthenticationResult) {
	session, err := s.m.sessions.GetSessionByState(state)
	if err := s.m.nonces.Redeem(state); err != nil {
		slog.Warn("Unknown or replayed state", "error", err)
		if session != nil && session.AccessToken == "" {
			_ = s.m.sessions.DeleteSessionByID(session.ID)
		}
		return nil, failure("Unknown or expired state")
	}
	if err != nil {
		slog.Warn("No session for state", "error", err)
		return nil, failure("Unknown or expired state")
	}
	return session, nil
}

func (s *requestService) currentSession() (*Session, error) {
	cookie, err := s.c.Cookie(s.m.cookieTemplate.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie '%s': %w", s.m.cookieTemplate.Name, err)
	}
	id, err := s.m.open([]byte(cookie.Value))
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie: %w", err)
	}
	return s.m.sessions.GetSessionByID(string(id))
}

func (s *requestService) setCookie(sessionID string) error {
	sealed, err := s.m.seal([]byte(sessionID))
	if err != nil {
		return fmt.Errorf("seal cookie: %w", err)
	}
	cookie := *s.m.cookieTemplate
	cookie.Value = string(sealed)
	s.c.SetCookie(&cookie)
	return nil
}

func (s *requestService) clearCookie() {
	cookie := *s.m.cookieTemplate
	cookie.MaxAge = -1
	s.c.SetCookie(&cookie)
}

func callbackQuery(rawURL string) (url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse callback url: %w", err)
	}
	return u.Query(), nil
}

func providerError(query url.Values) string {
	code := query.Get("error")
	if code == "" {
		return ""
	}
	if description := query.Get("error_description"); description != "" {
		return description
	}
	return code
}

func returnURLOf(state *remoteauth.OperationState) string {
	if state == nil {
		return ""
	}
	return state.ReturnURL
}
