package core

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/sidebarhq/sidebar/internal/domain"
)

// AllowList gates room entry. An empty list means the room is open to
// everyone. The list only grows; shrinking is not an operation here,
// so admitted participants are never retroactively evicted.
type AllowList struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewAllowList() *AllowList {
	return &AllowList{users: make(map[string]domain.User)}
}

// Add unions the given users into the list, ignoring duplicates, and
// returns the updated list.
func (l *AllowList) Add(users ...domain.User) []domain.User {
	l.mu.Lock()
	for _, u := range users {
		l.users[u.Username] = u
	}
	l.mu.Unlock()
	return l.Users()
}

// Allows reports whether a user may enter. An empty list admits anyone.
func (l *AllowList) Allows(u domain.User) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.users) == 0 {
		return true
	}
	_, ok := l.users[u.Username]
	return ok
}

// Users returns a snapshot sorted by username.
func (l *AllowList) Users() []domain.User {
	l.mu.RLock()
	out := lo.Values(l.users)
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
