package domain

import "strings"

// User is the cached profile stored next to the auth token.
type User struct {
	DisplayName  string `json:"name"`
	EmailAddress string `json:"email"`
	Role         string `json:"role"`
}

// Session pairs a token with the cached user profile. User may be nil.
type Session struct {
	Token string
	User  *User
}

// ValidToken reports whether raw can be used as a bearer token. Blank values and
// the "null"/"undefined" sentinels left behind by older clients are rejected.
func ValidToken(raw string) (string, bool) {
	token := strings.TrimSpace(raw)
	switch token {
	case "", "null", "undefined":
		return "", false
	}
	return token, true
}
