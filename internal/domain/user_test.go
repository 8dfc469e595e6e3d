package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_Validates_Username(t *testing.T) {
	req := require.New(t)

	u, err := NewUser("alice")
	req.NoError(err)
	req.Equal("alice", u.Username)

	_, err = NewUser("")
	req.ErrorIs(err, ErrUsernameEmpty)

	_, err = NewUser(strings.Repeat("x", MaxUsernameLen+1))
	req.ErrorIs(err, ErrUsernameTooLong)
}
