package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupRateLimiter_Blocks_After_Limit(t *testing.T) {
	req := require.New(t)
	rl := NewGroupRateLimiter(2, time.Minute)

	req.True(rl.Allow("alice"))
	req.True(rl.Allow("alice"))
	req.False(rl.Allow("alice"))

	// Other users have their own window
	req.True(rl.Allow("bob"))
}

func TestGroupRateLimiter_Window_Slides(t *testing.T) {
	req := require.New(t)
	rl := NewGroupRateLimiter(1, 10*time.Millisecond)

	req.True(rl.Allow("alice"))
	req.False(rl.Allow("alice"))

	time.Sleep(20 * time.Millisecond)
	req.True(rl.Allow("alice"))
}
