// Package profile holds the partner-sourced profile snapshot cached by the
// gateway.
package profile

// Snapshot is the partner's view of an account at fetch time. Snapshots are
// cached with a TTL and overwritten whole on refresh, never patched.
type Snapshot struct {
	AccountID    string `json:"iuc"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Civility     string `json:"civility,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	// Birthdate uses the partner's wire format, yyyy-mm-dd.
	Birthdate  string `json:"birthdate,omitempty"`
	FidNumber  string `json:"numFid,omitempty"`
	Status     string `json:"status,omitempty"`
	TOSVersion string `json:"tosVersion,omitempty"`
}
