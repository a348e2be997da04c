package remoteauth

// Action is the operation requested of the dispatcher. The zero value is
// not a valid action; use ParseAction to obtain one from user input.
type Action uint8

const (
	ActionLogIn Action = iota + 1
	ActionLogInCallback
	ActionLogInFailed
	ActionLogOut
	ActionLogOutCallback
	ActionLogOutFailed
	ActionLogOutSucceeded
	ActionRegister
	ActionProfile
)

var actionNames = map[Action]string{
	ActionLogIn:           "login",
	ActionLogInCallback:   "login-callback",
	ActionLogInFailed:     "login-failed",
	ActionLogOut:          "logout",
	ActionLogOutCallback:  "logout-callback",
	ActionLogOutFailed:    "logout-failed",
	ActionLogOutSucceeded: "logout-succeeded",
	ActionRegister:        "register",
	ActionProfile:         "profile",
}

// Actions lists every valid action in declaration order.
func Actions() []Action {
	return []Action{
		ActionLogIn,
		ActionLogInCallback,
		ActionLogInFailed,
		ActionLogOut,
		ActionLogOutCallback,
		ActionLogOutFailed,
		ActionLogOutSucceeded,
		ActionRegister,
		ActionProfile,
	}
}

// ParseAction maps the route value to an Action. Names are matched
// exactly, as they appear in the application paths.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, newError(KindInvalidAction, s, nil)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}
