package remoteauth_test

import (
	"context"
	"strings"

	"github.com/gematik/zero-authui/pkg/remoteauth"
)

const baseURI = "https://www.example.com/base/"

type fakeNavigator struct {
	current   string
	navigated []string
}

func newFakeNavigator(current string) *fakeNavigator {
	return &fakeNavigator{current: current}
}

func (n *fakeNavigator) BaseURI() string    { return baseURI }
func (n *fakeNavigator) CurrentURI() string { return n.current }

func (n *fakeNavigator) ToAbsoluteURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return baseURI + strings.TrimPrefix(path, "/")
}

func (n *fakeNavigator) NavigateTo(uri string) {
	n.navigated = append(n.navigated, uri)
}

type fakeBridge struct {
	redirects []string
}

func (b *fakeBridge) Redirect(_ context.Context, uri string) error {
	b.redirects = append(b.redirects, uri)
	return nil
}

type fakeStates struct {
	authenticated bool
}

func (s *fakeStates) AuthenticationState(context.Context) (*remoteauth.AuthenticationState, error) {
	return &remoteauth.AuthenticationState{User: remoteauth.User{IsAuthenticated: s.authenticated}}, nil
}

// fakeService answers every call with result and records what it got.
type fakeService struct {
	result *remoteauth.AuthenticationResult
	calls  []string
	last   remoteauth.AuthenticationContext
}

func (s *fakeService) record(name string, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	s.calls = append(s.calls, name)
	s.last = actx
	return s.result, nil
}

func (s *fakeService) SignIn(_ context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	return s.record("SignIn", actx)
}

func (s *fakeService) CompleteSignIn(_ context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	return s.record("CompleteSignIn", actx)
}

func (s *fakeService) SignOut(_ context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	return s.record("SignOut", actx)
}

func (s *fakeService) CompleteSignOut(_ context.Context, actx remoteauth.AuthenticationContext) (*remoteauth.AuthenticationResult, error) {
	return s.record("CompleteSignOut", actx)
}

type harness struct {
	nav     *fakeNavigator
	bridge  *fakeBridge
	states  *fakeStates
	service *fakeService
}

func newHarness(current string, status remoteauth.Status) *harness {
	return &harness{
		nav:     newFakeNavigator(current),
		bridge:  &fakeBridge{},
		states:  &fakeStates{authenticated: true},
		service: &fakeService{result: &remoteauth.AuthenticationResult{Status: status}},
	}
}

func (h *harness) dispatcher(opts ...remoteauth.Option) (*remoteauth.Dispatcher, error) {
	return remoteauth.NewDispatcher(h.service, h.states, h.nav, h.bridge, opts...)
}
