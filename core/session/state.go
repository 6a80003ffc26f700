package session

import "github.com/cbc-edu/eduplatform/core/user"

// State of a Manager:
//
//	idle -> authenticating -> authenticated | failed
//	authenticated -> signing_out -> idle
//	any settled state -> refreshing -> authenticated | idle
//
// A Login rejected by the Backend keeps the previous user, so failed may come with a
// non-nil User. A Login that could not load the user ends in failed with no user.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
	StateSigningOut
	StateRefreshing
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateAuthenticating: "authenticating",
	StateAuthenticated:  "authenticated",
	StateFailed:         "failed",
	StateSigningOut:     "signing_out",
	StateRefreshing:     "refreshing",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) transitional() bool {
	return s == StateAuthenticating || s == StateSigningOut || s == StateRefreshing
}

func settledState(usr *user.User) State {
	if usr != nil {
		return StateAuthenticated
	}
	return StateIdle
}
