package auth

// Credentials is the request body of login and register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the response of a successful login.
type LoginResult struct {
	Message string `json:"message,omitempty"`

	// Access is the bearer token for authenticated requests.
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`

	Username string `json:"username"`
}

// RegisterResult is the response of a successful registration.
type RegisterResult struct {
	Message string `json:"message,omitempty"`
}
