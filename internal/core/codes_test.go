package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeIssuer_Never_Issues_A_Code_In_Use(t *testing.T) {
	req := require.New(t)
	issuer := NewCodeIssuer()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code := issuer.Issue()
		_, dup := seen[code]
		req.False(dup, "code %q issued twice", code)
		seen[code] = struct{}{}
		req.True(issuer.InUse(code))
	}
}

func TestCodeIssuer_Release_Frees_The_Code(t *testing.T) {
	req := require.New(t)
	issuer := NewCodeIssuer()

	code := issuer.Issue()
	req.True(issuer.InUse(code))

	issuer.Release(code)
	req.False(issuer.InUse(code))

	// Releasing an unknown code is harmless.
	issuer.Release("never-issued")
}

func TestCodeIssuer_Room_Close_Releases_Its_Codes(t *testing.T) {
	req := require.New(t)
	issuer := NewCodeIssuer()
	room := NewRoom(issuer, shareBase)
	roomCode := string(room.Code())
	groupCode := string(room.DefaultGroup().Code())
	req.True(issuer.InUse(roomCode))
	req.True(issuer.InUse(groupCode))

	req.NoError(room.Close())

	req.False(issuer.InUse(roomCode))
	req.False(issuer.InUse(groupCode))
}
