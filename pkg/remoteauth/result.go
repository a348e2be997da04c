package remoteauth

// Status is the outcome reported by the authentication service.
type Status string

const (
	StatusSuccess            Status = "success"
	StatusRedirect           Status = "redirect"
	StatusOperationCompleted Status = "operation-completed"
	StatusFailure            Status = "failure"
)

// OperationState is threaded through the authentication service across
// the redirect round trip. The dispatcher only reads ReturnURL back.
type OperationState struct {
	ReturnURL string `json:"returnUrl"`
}

// AuthenticationContext is handed to the service on every call.
type AuthenticationContext struct {
	State *OperationState
	// the full current url, used by the completion calls
	URL string
}

type AuthenticationResult struct {
	Status       Status
	State        *OperationState
	ErrorMessage string
}

type User struct {
	IsAuthenticated bool
}

type AuthenticationState struct {
	User User
}
