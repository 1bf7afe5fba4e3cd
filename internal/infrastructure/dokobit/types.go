package dokobit

// loginRequest holds the form fields of POST /v2/mobile/login.json
type loginRequest struct {
	Phone   string `validate:"required,e164"`
	Message string
}

// loginResponse is the answer to a login request
type loginResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Token       string `json:"token"`
	ControlCode string `json:"control_code"`
}

// statusResponse is the answer to GET /v2/mobile/login/status/<token>.json
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Country string `json:"country"`
}

// statusError is the provider's own failure marker on a 2xx response
const statusError = "error"
