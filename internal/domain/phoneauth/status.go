package phoneauth

import "strings"

// AuthStatus is the resolution state of a mobile challenge
type AuthStatus string

const (
	AuthStatusPending       AuthStatus = "pending"
	AuthStatusAuthenticated AuthStatus = "authenticated"
	AuthStatusFailed        AuthStatus = "failed"
)

// ParseAuthStatus maps a provider status string to an AuthStatus.
// Unknown values are terminal.
func ParseAuthStatus(raw string) AuthStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok", "authenticated", "success":
		return AuthStatusAuthenticated
	case "waiting", "pending":
		return AuthStatusPending
	default:
		return AuthStatusFailed
	}
}

// IsTerminal reports whether polling should stop
func (s AuthStatus) IsTerminal() bool {
	return s != AuthStatusPending
}

// String returns the string representation
func (s AuthStatus) String() string {
	return string(s)
}

// Challenge is an issued mobile sign-in request.
// ControlCode is shown to the user so they can compare it on the phone.
type Challenge struct {
	Token       string `json:"token"`
	ControlCode string `json:"control_code"`
}

// StatusResult is one status check, with the identity fields the provider returns once authenticated
type StatusResult struct {
	Status    AuthStatus `json:"status"`
	Code      string     `json:"code,omitempty"`
	Name      string     `json:"name,omitempty"`
	Surname   string     `json:"surname,omitempty"`
	Country   string     `json:"country,omitempty"`
	RawStatus string     `json:"raw_status,omitempty"`
}
