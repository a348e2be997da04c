package remoteauth

import (
	"log/slog"
	"strings"
)

const returnURLParameter = "returnUrl"

// ResolveReturnURL picks the url to go to once an operation finishes.
// A return url carried on the operation state is trusted as is, since
// it made the round trip through the authentication service. A
// returnUrl query parameter must start with the base uri of the
// application, otherwise the redirect is rejected.
func ResolveReturnURL(nav Navigator, state *OperationState, defaultURL string) (string, error) {
	if state != nil && state.ReturnURL != "" {
		return state.ReturnURL, nil
	}

	if fromQuery, ok := QueryParameter(nav.CurrentURI(), returnURLParameter); ok {
		if !strings.HasPrefix(fromQuery, nav.BaseURI()) {
			slog.Warn("Rejecting return url", "return_url", fromQuery, "base_uri", nav.BaseURI())
			return "", newError(KindOpenRedirectRejected, fromQuery, nil)
		}
		return fromQuery, nil
	}

	if defaultURL != "" {
		return defaultURL, nil
	}
	return nav.BaseURI(), nil
}
