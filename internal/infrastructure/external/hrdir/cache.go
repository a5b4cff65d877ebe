package hrdir

import (
	"context"
	"sync"
	"time"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// CachedDirectory wraps a Directory with a TTL cache. Hierarchy data moves
// slowly; every approval decision triggers several lookups, so hitting the
// people API each time would dominate request latency.
type CachedDirectory struct {
	inner port.Directory
	ttl   time.Duration

	mu      sync.RWMutex
	people  map[string]cachedPerson
	listing map[string]cachedList
}

type cachedPerson struct {
	person  *entity.Person // nil is cached too: unknown stays unknown for a TTL
	expires time.Time
}

type cachedList struct {
	people  []*entity.Person
	expires time.Time
}

// NewCachedDirectory wraps a directory with a TTL cache
func NewCachedDirectory(inner port.Directory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		inner:   inner,
		ttl:     ttl,
		people:  make(map[string]cachedPerson),
		listing: make(map[string]cachedList),
	}
}

// LookupByID implements port.Directory
func (c *CachedDirectory) LookupByID(ctx context.Context, employeeID string) (*entity.Person, error) {
	c.mu.RLock()
	entry, ok := c.people[employeeID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return clonePerson(entry.person), nil
	}

	person, err := c.inner.LookupByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.people[employeeID] = cachedPerson{person: clonePerson(person), expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return person, nil
}

// FindByRole implements port.Directory
func (c *CachedDirectory) FindByRole(ctx context.Context, role string) ([]*entity.Person, error) {
	return c.cachedList(ctx, "role:"+role, func() ([]*entity.Person, error) {
		return c.inner.FindByRole(ctx, role)
	})
}

// FindByTitleKeyword implements port.Directory
func (c *CachedDirectory) FindByTitleKeyword(ctx context.Context, keyword string) ([]*entity.Person, error) {
	return c.cachedList(ctx, "title:"+keyword, func() ([]*entity.Person, error) {
		return c.inner.FindByTitleKeyword(ctx, keyword)
	})
}

func (c *CachedDirectory) cachedList(_ context.Context, key string, fetch func() ([]*entity.Person, error)) ([]*entity.Person, error) {
	c.mu.RLock()
	entry, ok := c.listing[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return cloneList(entry.people), nil
	}

	people, err := fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.listing[key] = cachedList{people: cloneList(people), expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return people, nil
}

// Invalidate drops all cached entries, e.g. after an org-chart import.
func (c *CachedDirectory) Invalidate() {
	c.mu.Lock()
	c.people = make(map[string]cachedPerson)
	c.listing = make(map[string]cachedList)
	c.mu.Unlock()
}

func clonePerson(p *entity.Person) *entity.Person {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneList(people []*entity.Person) []*entity.Person {
	out := make([]*entity.Person, len(people))
	for i, p := range people {
		out[i] = clonePerson(p)
	}
	return out
}

// Verify interface compliance
var _ port.Directory = (*CachedDirectory)(nil)
