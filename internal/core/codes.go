package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const codeLen = 8

// issueAttempts bounds the collision-retry loop. The code space is
// 16^8 so hitting the bound means the issuer is misconfigured or the
// process leaked codes; that is not a recoverable condition.
const issueAttempts = 1 << 16

// CodeIssuer hands out unique short codes for rooms and groups and
// takes them back when the owning entity is destroyed. A released
// code may be issued again later.
type CodeIssuer struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func NewCodeIssuer() *CodeIssuer {
	return &CodeIssuer{inUse: make(map[string]struct{})}
}

// Issue returns a code that is not currently in use.
func (ci *CodeIssuer) Issue() string {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	for i := 0; i < issueAttempts; i++ {
		code := strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLen]
		if _, taken := ci.inUse[code]; taken {
			continue
		}
		ci.inUse[code] = struct{}{}
		return code
	}
	panic(fmt.Sprintf("code issuer: space exhausted after %d attempts", issueAttempts))
}

// Release frees a code for future reuse. Unknown codes are ignored.
func (ci *CodeIssuer) Release(code string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	delete(ci.inUse, code)
}

// InUse reports whether a code is currently issued.
func (ci *CodeIssuer) InUse(code string) bool {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	_, ok := ci.inUse[code]
	return ok
}
