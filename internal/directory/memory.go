package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/enisar25/SocialApp/internal/chat"
)

// MemoryDirectory is the in-process chat.Directory used in development and
// tests. The surrounding application owns real account data; the gateway only
// ever reads through the interface.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[string]chat.User
	friends map[string]map[string]struct{}
}

var _ chat.Directory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:   make(map[string]chat.User),
		friends: make(map[string]map[string]struct{}),
	}
}

// Add seeds a user.
func (d *MemoryDirectory) Add(user chat.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// Befriend records a mutual friendship between two users.
func (d *MemoryDirectory) Befriend(a, b string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set, ok := d.friends[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			d.friends[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (*chat.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, chat.ErrNotFound)
	}
	return &user, nil
}

func (d *MemoryDirectory) Missing(ctx context.Context, ids []string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := d.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (d *MemoryDirectory) AreFriends(ctx context.Context, a, b string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.friends[a][b]
	return ok, nil
}
