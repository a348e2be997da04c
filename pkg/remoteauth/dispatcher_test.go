package remoteauth_test

import (
	"context"
	"testing"

	"github.com/gematik/zero-authui/pkg/remoteauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchSelectsViewForEveryAction(t *testing.T) {
	for _, action := range remoteauth.Actions() {
		t.Run(action.String(), func(t *testing.T) {
			h := newHarness(baseURI+"authentication/"+action.String(), remoteauth.StatusOperationCompleted)
			h.states.authenticated = false
			if action == remoteauth.ActionLogIn {
				h.service.result.Status = remoteauth.StatusRedirect
			}
			d, err := h.dispatcher()
			require.NoError(t, err)

			view, err := d.Dispatch(context.Background(), action)
			require.NoError(t, err)
			assert.Equal(t, action, view.Action)
		})
	}
}

func TestDispatchInvalidAction(t *testing.T) {
	h := newHarness(baseURI, remoteauth.StatusSuccess)
	d, err := h.dispatcher()
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), remoteauth.Action(0))
	assert.ErrorIs(t, err, remoteauth.ErrInvalidAction)
	assert.Empty(t, h.service.calls)
	assert.Empty(t, h.nav.navigated)
	assert.Empty(t, h.bridge.redirects)
}

func TestLogIn(t *testing.T) {
	tests := []struct {
		name         string
		current      string
		status       remoteauth.Status
		message      string
		wantNavigate []string
		wantErr      error
	}{
		{
			name:         "success navigates to base uri",
			current:      baseURI + "authentication/login",
			status:       remoteauth.StatusSuccess,
			wantNavigate: []string{baseURI},
		},
		{
			name:         "success navigates to return url",
			current:      baseURI + "authentication/login?returnUrl=" + baseURI + "orders",
			status:       remoteauth.StatusSuccess,
			wantNavigate: []string{baseURI + "orders"},
		},
		{
			name:    "redirect leaves navigation alone",
			current: baseURI + "authentication/login",
			status:  remoteauth.StatusRedirect,
		},
		{
			name:         "failure navigates to login failed",
			current:      baseURI + "authentication/login",
			status:       remoteauth.StatusFailure,
			message:      "access denied & more",
			wantNavigate: []string{"authentication/login-failed?message=access%20denied%20%26%20more"},
		},
		{
			name:    "operation completed is invalid",
			current: baseURI + "authentication/login",
			status:  remoteauth.StatusOperationCompleted,
			wantErr: remoteauth.ErrInvalidState,
		},
		{
			name:    "foreign return url is rejected",
			current: baseURI + "authentication/login?returnUrl=https%3A%2F%2Fevil.example.org%2F",
			status:  remoteauth.StatusSuccess,
			wantErr: remoteauth.ErrOpenRedirectRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.current, tt.status)
			h.service.result.ErrorMessage = tt.message
			d, err := h.dispatcher()
			require.NoError(t, err)

			_, err = d.Dispatch(context.Background(), remoteauth.ActionLogIn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNavigate, h.nav.navigated)
			assert.Empty(t, h.bridge.redirects)
			require.NotNil(t, h.service.last.State)
		})
	}
}

func TestLogInStoresReturnURLOnState(t *testing.T) {
	h := newHarness(baseURI+"authentication/login?returnUrl="+baseURI+"cart", remoteauth.StatusRedirect)
	d, err := h.dispatcher()
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), remoteauth.ActionLogIn)
	require.NoError(t, err)
	assert.Equal(t, []string{"SignIn"}, h.service.calls)
	assert.Equal(t, baseURI+"cart", h.service.last.State.ReturnURL)
}

func TestLogInCallback(t *testing.T) {
	tests := []struct {
		name         string
		current      string
		result       remoteauth.AuthenticationResult
		wantRedirect []string
		wantNavigate []string
		wantErr      error
	}{
		{
			name:         "success uses state",
			current:      baseURI + "authentication/login-callback?returnUrl=" + baseURI + "query",
			result:       remoteauth.AuthenticationResult{Status: remoteauth.StatusSuccess, State: &remoteauth.OperationState{ReturnURL: baseURI + "state"}},
			wantRedirect: []string{baseURI + "state"},
		},
		{
			name:         "success falls back to query",
			current:      baseURI + "authentication/login-callback?returnUrl=" + baseURI + "query",
			result:       remoteauth.AuthenticationResult{Status: remoteauth.StatusSuccess},
			wantRedirect: []string{baseURI + "query"},
		},
		{
			name:         "success falls back to base uri",
			current:      baseURI + "authentication/login-callback?code=abc",
			result:       remoteauth.AuthenticationResult{Status: remoteauth.StatusSuccess, State: &remoteauth.OperationState{}},
			wantRedirect: []string{baseURI},
		},
		{
			name:    "operation completed does nothing",
			current: baseURI + "authentication/login-callback",
			result:  remoteauth.AuthenticationResult{Status: remoteauth.StatusOperationCompleted},
		},
		{
			name:         "failure navigates to login failed",
			current:      baseURI + "authentication/login-callback",
			result:       remoteauth.AuthenticationResult{Status: remoteauth.StatusFailure, ErrorMessage: "bad"},
			wantNavigate: []string{"authentication/login-failed?message=bad"},
		},
		{
			name:    "redirect is invalid",
			current: baseURI + "authentication/login-callback",
			result:  remoteauth.AuthenticationResult{Status: remoteauth.StatusRedirect},
			wantErr: remoteauth.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.current, tt.result.Status)
			result := tt.result
			h.service.result = &result
			d, err := h.dispatcher()
			require.NoError(t, err)

			_, err = d.Dispatch(context.Background(), remoteauth.ActionLogInCallback)
			assert.Equal(t, tt.current, h.service.last.URL)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, h.nav.navigated)
				assert.Empty(t, h.bridge.redirects)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRedirect, h.bridge.redirects)
			assert.Equal(t, tt.wantNavigate, h.nav.navigated)
		})
	}
}

func TestLogOut(t *testing.T) {
	t.Run("unauthenticated user is left alone", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout", remoteauth.StatusSuccess)
		h.states.authenticated = false
		d, err := h.dispatcher()
		require.NoError(t, err)

		view, err := d.Dispatch(context.Background(), remoteauth.ActionLogOut)
		require.NoError(t, err)
		assert.Equal(t, remoteauth.ActionLogOut, view.Action)
		assert.Empty(t, h.service.calls)
		assert.Empty(t, h.nav.navigated)
		assert.Empty(t, h.bridge.redirects)
	})

	t.Run("success redirects to logged out page", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout", remoteauth.StatusSuccess)
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOut)
		require.NoError(t, err)
		assert.Equal(t, []string{"SignOut"}, h.service.calls)
		assert.Equal(t, baseURI+"authentication/logout-succeeded", h.service.last.State.ReturnURL)
		assert.Equal(t, []string{baseURI + "authentication/logout-succeeded"}, h.bridge.redirects)
	})

	t.Run("redirect does nothing", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout", remoteauth.StatusRedirect)
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOut)
		require.NoError(t, err)
		assert.Empty(t, h.nav.navigated)
		assert.Empty(t, h.bridge.redirects)
	})

	t.Run("failure navigates to logout failed", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout", remoteauth.StatusFailure)
		h.service.result.ErrorMessage = "nope"
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOut)
		require.NoError(t, err)
		assert.Equal(t, []string{"authentication/logout-failed?message=nope"}, h.nav.navigated)
	})
}

func TestLogOutCallback(t *testing.T) {
	t.Run("success defaults to logged out page", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout-callback", remoteauth.StatusSuccess)
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOutCallback)
		require.NoError(t, err)
		assert.Equal(t, []string{"CompleteSignOut"}, h.service.calls)
		assert.Equal(t, []string{baseURI + "authentication/logout-succeeded"}, h.bridge.redirects)
	})

	t.Run("success uses state", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout-callback", remoteauth.StatusSuccess)
		h.service.result.State = &remoteauth.OperationState{ReturnURL: baseURI + "bye"}
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOutCallback)
		require.NoError(t, err)
		assert.Equal(t, []string{baseURI + "bye"}, h.bridge.redirects)
	})

	t.Run("redirect is invalid", func(t *testing.T) {
		h := newHarness(baseURI+"authentication/logout-callback", remoteauth.StatusRedirect)
		d, err := h.dispatcher()
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionLogOutCallback)
		assert.ErrorIs(t, err, remoteauth.ErrInvalidState)
		assert.Empty(t, h.bridge.redirects)
	})
}

func TestFailureViewsCarryMessage(t *testing.T) {
	for _, action := range []remoteauth.Action{remoteauth.ActionLogInFailed, remoteauth.ActionLogOutFailed} {
		t.Run(action.String(), func(t *testing.T) {
			h := newHarness(baseURI+"authentication/"+action.String()+"?message=token+expired%21", remoteauth.StatusSuccess)
			d, err := h.dispatcher()
			require.NoError(t, err)

			view, err := d.Dispatch(context.Background(), action)
			require.NoError(t, err)
			assert.Equal(t, "token expired!", view.Message)
			assert.Equal(t, "token expired!", d.Message())
			assert.Empty(t, h.service.calls)
		})
	}
}

func TestRegisterAndProfile(t *testing.T) {
	t.Run("not supported without remote paths", func(t *testing.T) {
		for _, action := range []remoteauth.Action{remoteauth.ActionRegister, remoteauth.ActionProfile} {
			h := newHarness(baseURI, remoteauth.StatusSuccess)
			d, err := h.dispatcher()
			require.NoError(t, err)

			view, err := d.Dispatch(context.Background(), action)
			require.NoError(t, err)
			assert.True(t, view.NotSupported)
			assert.Empty(t, h.bridge.redirects)
		}
	})

	t.Run("register redirects with login return url", func(t *testing.T) {
		h := newHarness(baseURI, remoteauth.StatusSuccess)
		paths := remoteauth.DefaultApplicationPaths()
		paths.RemoteRegisterPath = "https://idp.example.com/register"
		d, err := h.dispatcher(remoteauth.WithApplicationPaths(paths))
		require.NoError(t, err)

		view, err := d.Dispatch(context.Background(), remoteauth.ActionRegister)
		require.NoError(t, err)
		assert.False(t, view.NotSupported)
		assert.Equal(t, []string{"https://idp.example.com/register?returnUrl=%2Fbase%2Fauthentication%2Flogin"}, h.bridge.redirects)
	})

	t.Run("profile redirects", func(t *testing.T) {
		h := newHarness(baseURI, remoteauth.StatusSuccess)
		d, err := h.dispatcher(remoteauth.WithPathsProvider(remoteauth.StaticPaths{RemoteProfilePath: "account/profile"}))
		require.NoError(t, err)

		_, err = d.Dispatch(context.Background(), remoteauth.ActionProfile)
		require.NoError(t, err)
		assert.Equal(t, []string{baseURI + "account/profile"}, h.bridge.redirects)
		assert.Equal(t, "authentication/login", d.ApplicationPaths().LogInPath)
	})
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	h := newHarness(baseURI, remoteauth.StatusSuccess)
	_, err := remoteauth.NewDispatcher(nil, h.states, h.nav, h.bridge)
	assert.Error(t, err)
}

func TestMissingResultIsInvalidState(t *testing.T) {
	tests := []struct {
		action  remoteauth.Action
		current string
	}{
		{remoteauth.ActionLogIn, baseURI + "authentication/login"},
		{remoteauth.ActionLogInCallback, baseURI + "authentication/login-callback"},
		{remoteauth.ActionLogOut, baseURI + "authentication/logout"},
		{remoteauth.ActionLogOutCallback, baseURI + "authentication/logout-callback"},
	}

	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			h := newHarness(tt.current, remoteauth.StatusSuccess)
			h.service.result = nil
			d, err := h.dispatcher()
			require.NoError(t, err)

			_, err = d.Dispatch(context.Background(), tt.action)
			assert.ErrorIs(t, err, remoteauth.ErrInvalidState)
			assert.Len(t, h.service.calls, 1)
			assert.Empty(t, h.nav.navigated)
			assert.Empty(t, h.bridge.redirects)
		})
	}
}
