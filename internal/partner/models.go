package partner

// TokenInfo is the partner's answer to an access-token introspection.
type TokenInfo struct {
	Scope       []string `json:"scope"`
	GrantType   string   `json:"grant_type"`
	Realm       string   `json:"realm"`
	OpenID      string   `json:"openid"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	AccessToken string   `json:"access_token"`
	Profile     string   `json:"profile"`
}

// CreateAccountRequest is the payload of the partner's account creation API.
type CreateAccountRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// Birthdate uses the partner's wire format, yyyy-mm-dd.
	Birthdate string `json:"birthdate"`
}

// apiError is the partner's error body.
type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

type invalidTokenBody struct {
	RefreshToken string `json:"refresh_token"`
}
