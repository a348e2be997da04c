package remoteauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Service performs the actual sign-in and sign-out protocol.
type Service interface {
	SignIn(ctx context.Context, actx AuthenticationContext) (*AuthenticationResult, error)
	CompleteSignIn(ctx context.Context, actx AuthenticationContext) (*AuthenticationResult, error)
	SignOut(ctx context.Context, actx AuthenticationContext) (*AuthenticationResult, error)
	CompleteSignOut(ctx context.Context, actx AuthenticationContext) (*AuthenticationResult, error)
}

type StateProvider interface {
	AuthenticationState(ctx context.Context) (*AuthenticationState, error)
}

// Navigator performs in-app navigation. NavigateTo accepts absolute
// uris and paths relative to BaseURI. BaseURI always ends with '/'.
type Navigator interface {
	BaseURI() string
	CurrentURI() string
	ToAbsoluteURI(path string) string
	NavigateTo(uri string)
}

// HostBridge performs a full-page redirect that reloads the document,
// bypassing in-app navigation.
type HostBridge interface {
	Redirect(ctx context.Context, uri string) error
}

// View is the fragment selected by a dispatch.
type View struct {
	Action Action
	// set for login-failed and logout-failed
	Message string
	// register or profile requested, but no remote path is configured
	NotSupported bool
}

type Option func(*Dispatcher) error

func WithApplicationPaths(paths ApplicationPaths) Option {
	return func(d *Dispatcher) error {
		d.paths = paths.Merge(DefaultApplicationPaths())
		return nil
	}
}

func WithPathsProvider(provider PathsProvider) Option {
	return func(d *Dispatcher) error {
		if provider == nil {
			return errors.New("paths provider is nil")
		}
		d.paths = provider.ApplicationPaths().Merge(DefaultApplicationPaths())
		return nil
	}
}

// Dispatcher runs one action per call. It is not safe for concurrent
// use; create one per request.
type Dispatcher struct {
	service Service
	states  StateProvider
	nav     Navigator
	bridge  HostBridge
	paths   ApplicationPaths
	message string
}

func NewDispatcher(service Service, states StateProvider, nav Navigator, bridge HostBridge, opts ...Option) (*Dispatcher, error) {
	if service == nil || states == nil || nav == nil || bridge == nil {
		return nil, errors.New("dispatcher requires service, state provider, navigator and host bridge")
	}

	d := &Dispatcher{
		service: service,
		states:  states,
		nav:     nav,
		bridge:  bridge,
		paths:   DefaultApplicationPaths(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Dispatcher) ApplicationPaths() ApplicationPaths {
	return d.paths
}

// Message is the last error message extracted for a failure view.
func (d *Dispatcher) Message() string {
	return d.message
}

// Dispatch performs the side effect for action and selects the view to
// render. When a navigation was issued the view is still returned; the
// host decides whether anything is rendered.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (*View, error) {
	view := &View{Action: action}

	var err error
	switch action {
	case ActionLogIn:
		err = d.processLogIn(ctx)
	case ActionLogInCallback:
		err = d.processLogInCallback(ctx)
	case ActionLogInFailed:
		d.message, _ = QueryParameter(d.nav.CurrentURI(), "message")
		view.Message = d.message
	case ActionLogOut:
		err = d.processLogOut(ctx)
	case ActionLogOutCallback:
		err = d.processLogOutCallback(ctx)
	case ActionLogOutFailed:
		d.message, _ = QueryParameter(d.nav.CurrentURI(), "message")
		view.Message = d.message
	case ActionLogOutSucceeded:
	case ActionRegister:
		view.NotSupported, err = d.processRegister(ctx)
	case ActionProfile:
		view.NotSupported, err = d.processProfile(ctx)
	default:
		return nil, newError(KindInvalidAction, action.String(), nil)
	}
	if err != nil {
		return nil, err
	}

	return view, nil
}

func (d *Dispatcher) processLogIn(ctx context.Context) error {
	returnURL, err := ResolveReturnURL(d.nav, nil, "")
	if err != nil {
		return err
	}

	state := &OperationState{ReturnURL: returnURL}
	result, err := d.service.SignIn(ctx, AuthenticationContext{State: state})
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if result == nil {
		return newError(KindInvalidState, "", nil)
	}

	switch result.Status {
	case StatusSuccess:
		d.navigate(returnURL)
	case StatusRedirect:
	case StatusFailure:
		d.navigateToFailure(d.paths.LogInFailedPath, result.ErrorMessage)
	default:
		return newError(KindInvalidState, string(result.Status), nil)
	}
	return nil
}

func (d *Dispatcher) processLogInCallback(ctx context.Context) error {
	result, err := d.service.CompleteSignIn(ctx, AuthenticationContext{URL: d.nav.CurrentURI()})
	if err != nil {
		return fmt.Errorf("complete sign in: %w", err)
	}
	if result == nil {
		return newError(KindInvalidState, "", nil)
	}

	switch result.Status {
	case StatusRedirect:
		// completing a sign in must never start another redirect
		return newError(KindInvalidState, string(result.Status), nil)
	case StatusSuccess:
		returnURL, err := ResolveReturnURL(d.nav, result.State, "")
		if err != nil {
			return err
		}
		return d.redirect(ctx, returnURL)
	case StatusOperationCompleted:
	case StatusFailure:
		d.navigateToFailure(d.paths.LogInFailedPath, result.ErrorMessage)
	default:
		return newError(KindInvalidState, string(result.Status), nil)
	}
	return nil
}

func (d *Dispatcher) processLogOut(ctx context.Context) error {
	returnURL, err := ResolveReturnURL(d.nav, nil, d.nav.ToAbsoluteURI(d.paths.LogOutSucceededPath))
	if err != nil {
		return err
	}

	authState, err := d.states.AuthenticationState(ctx)
	if err != nil {
		return fmt.Errorf("get authentication state: %w", err)
	}
	if !authState.User.IsAuthenticated {
		slog.Debug("User is not authenticated, nothing to log out")
		return nil
	}

	state := &OperationState{ReturnURL: returnURL}
	result, err := d.service.SignOut(ctx, AuthenticationContext{State: state})
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if result == nil {
		return newError(KindInvalidState, "", nil)
	}

	switch result.Status {
	case StatusRedirect, StatusOperationCompleted:
	case StatusSuccess:
		return d.redirect(ctx, returnURL)
	case StatusFailure:
		d.navigateToFailure(d.paths.LogOutFailedPath, result.ErrorMessage)
	default:
		return newError(KindInvalidState, string(result.Status), nil)
	}
	return nil
}

func (d *Dispatcher) processLogOutCallback(ctx context.Context) error {
	result, err := d.service.CompleteSignOut(ctx, AuthenticationContext{URL: d.nav.CurrentURI()})
	if err != nil {
		return fmt.Errorf("complete sign out: %w", err)
	}
	if result == nil {
		return newError(KindInvalidState, "", nil)
	}

	switch result.Status {
	case StatusRedirect:
		// completing a sign out must never start another redirect
		return newError(KindInvalidState, string(result.Status), nil)
	case StatusSuccess:
		returnURL, err := ResolveReturnURL(d.nav, result.State, d.nav.ToAbsoluteURI(d.paths.LogOutSucceededPath))
		if err != nil {
			return err
		}
		return d.redirect(ctx, returnURL)
	case StatusOperationCompleted:
	case StatusFailure:
		d.navigateToFailure(d.paths.LogOutFailedPath, result.ErrorMessage)
	default:
		return newError(KindInvalidState, string(result.Status), nil)
	}
	return nil
}

func (d *Dispatcher) processRegister(ctx context.Context) (bool, error) {
	if d.paths.RemoteRegisterPath == "" {
		return true, nil
	}

	loginURL := d.nav.ToAbsoluteURI(d.paths.LogInPath)
	if u, err := url.Parse(loginURL); err == nil {
		loginURL = u.RequestURI()
	}
	registerURL := d.nav.ToAbsoluteURI(d.paths.RemoteRegisterPath + "?" + returnURLParameter + "=" + escapeDataString(loginURL))

	return false, d.redirect(ctx, registerURL)
}

func (d *Dispatcher) processProfile(ctx context.Context) (bool, error) {
	if d.paths.RemoteProfilePath == "" {
		return true, nil
	}
	return false, d.redirect(ctx, d.nav.ToAbsoluteURI(d.paths.RemoteProfilePath))
}

func (d *Dispatcher) navigate(uri string) {
	slog.Info("Navigating", "uri", uri)
	d.nav.NavigateTo(uri)
}

func (d *Dispatcher) navigateToFailure(path, message string) {
	d.navigate(path + "?message=" + escapeDataString(message))
}

func (d *Dispatcher) redirect(ctx context.Context, uri string) error {
	slog.Info("Redirecting", "uri", uri)
	if err := d.bridge.Redirect(ctx, uri); err != nil {
		return fmt.Errorf("redirect to %s: %w", uri, err)
	}
	return nil
}
