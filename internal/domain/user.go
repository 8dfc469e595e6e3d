// Package domain contains entities without logic, just meta-data.
package domain

const MaxUsernameLen = 36

// User is the identity record handed to the core by the directory
// collaborator. Identity is the username; two Users are the same
// user iff their usernames are equal.
type User struct {
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username string) (User, error) {
	if len(username) == 0 {
		return User{}, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return User{}, ErrUsernameTooLong
	}
	return User{Username: username}, nil
}
