package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// table is an insertion-ordered collection keyed by ID.
type table[T any] struct {
	rows []T
	id   func(*T) *string
}

func (t *table[T]) find(id string) int {
	return slices.IndexFunc(t.rows, func(r T) bool { return *t.id(&r) == id })
}

func (t *table[T]) get(id string) (T, bool) {
	if i := t.find(id); i >= 0 {
		return t.rows[i], true
	}
	var zero T
	return zero, false
}

func (t *table[T]) insert(row T) string {
	id := uuid.NewString()
	*t.id(&row) = id
	t.rows = append(t.rows, row)
	return id
}

func (t *table[T]) update(row T) bool {
	i := t.find(*t.id(&row))
	if i < 0 {
		return false
	}
	t.rows[i] = row
	return true
}

func (t *table[T]) delete(id string) {
	t.rows = slices.DeleteFunc(t.rows, func(r T) bool { return *t.id(&r) == id })
}

func (t *table[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// newestFirst returns up to limit matching rows in reverse insertion order.
// A limit of zero or less returns every match.
func (t *table[T]) newestFirst(keep func(T) bool, limit int) []T {
	var out []T
	for i := len(t.rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if keep(t.rows[i]) {
			out = append(out, t.rows[i])
		}
	}
	return out
}

// InMemoryStore is a thread-safe, in-memory implementation of Store.
type InMemoryStore struct {
	mu            sync.RWMutex
	brands        table[Brand]
	projects      table[Project]
	tasks         table[Task]
	members       table[Member]
	campaigns     table[Campaign]
	activities    table[Activity]
	conversations table[Conversation]
	messages      table[ChatMessage]
	settings      map[string]string

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewInMemoryStore creates a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		brands:        table[Brand]{id: func(r *Brand) *string { return &r.ID }},
		projects:      table[Project]{id: func(r *Project) *string { return &r.ID }},
		tasks:         table[Task]{id: func(r *Task) *string { return &r.ID }},
		members:       table[Member]{id: func(r *Member) *string { return &r.ID }},
		campaigns:     table[Campaign]{id: func(r *Campaign) *string { return &r.ID }},
		activities:    table[Activity]{id: func(r *Activity) *string { return &r.ID }},
		conversations: table[Conversation]{id: func(r *Conversation) *string { return &r.ID }},
		messages:      table[ChatMessage]{id: func(r *ChatMessage) *string { return &r.ID }},
		settings:      make(map[string]string),
		now:           time.Now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// GetBrand returns the brand with the given ID.
func (s *InMemoryStore) GetBrand(_ context.Context, id string) (Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brands.get(id)
	if !ok {
		return Brand{}, notFound("brand", id)
	}
	b.Colors = slices.Clone(b.Colors)
	return b, nil
}

// ListBrands returns every brand in creation order.
func (s *InMemoryStore) ListBrands(_ context.Context) ([]Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.brands.rows), nil
}

// CreateBrand stores b under a new ID.
func (s *InMemoryStore) CreateBrand(_ context.Context, b Brand) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.Colors = slices.Clone(b.Colors)
	return s.brands.insert(b), nil
}

// UpdateBrand replaces the stored brand with b.
func (s *InMemoryStore) UpdateBrand(_ context.Context, b Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Colors = slices.Clone(b.Colors)
	if !s.brands.update(b) {
		return notFound("brand", b.ID)
	}
	return nil
}

// DeleteBrand removes a brand. Related entities are left in place.
func (s *InMemoryStore) DeleteBrand(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands.delete(id)
	return nil
}

// ListProjects returns the brand's projects in creation order.
func (s *InMemoryStore) ListProjects(_ context.Context, brandID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.filter(func(p Project) bool { return p.BrandID == brandID }), nil
}

// CreateProject stores p under a new ID.
func (s *InMemoryStore) CreateProject(_ context.Context, p Project) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	return s.projects.insert(p), nil
}

// UpdateProject replaces the stored project with p.
func (s *InMemoryStore) UpdateProject(_ context.Context, p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.projects.update(p) {
		return notFound("project", p.ID)
	}
	return nil
}

// DeleteProject removes a project and its tasks.
func (s *InMemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects.delete(id)
	s.tasks.rows = slices.DeleteFunc(s.tasks.rows, func(t Task) bool { return t.ProjectID == id })
	return nil
}

// ListTasks returns the project's tasks in creation order.
func (s *InMemoryStore) ListTasks(_ context.Context, projectID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.filter(func(t Task) bool { return t.ProjectID == projectID }), nil
}

// CreateTask stores t under a new ID.
func (s *InMemoryStore) CreateTask(_ context.Context, t Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.insert(t), nil
}

// UpdateTask replaces the stored task with t.
func (s *InMemoryStore) UpdateTask(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tasks.update(t) {
		return notFound("task", t.ID)
	}
	return nil
}

// DeleteTask removes a task.
func (s *InMemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks.delete(id)
	return nil
}

// ListMembers returns the brand's team in creation order.
func (s *InMemoryStore) ListMembers(_ context.Context, brandID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members.filter(func(m Member) bool { return m.BrandID == brandID }), nil
}

// CreateMember stores m under a new ID.
func (s *InMemoryStore) CreateMember(_ context.Context, m Member) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members.insert(m), nil
}

// DeleteMember removes a team member.
func (s *InMemoryStore) DeleteMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members.delete(id)
	return nil
}

// ListCampaigns returns the brand's campaigns in creation order.
func (s *InMemoryStore) ListCampaigns(_ context.Context, brandID string) ([]Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.campaigns.filter(func(c Campaign) bool { return c.BrandID == brandID }), nil
}

// CreateCampaign stores c under a new ID.
func (s *InMemoryStore) CreateCampaign(_ context.Context, c Campaign) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns.insert(c), nil
}

// UpdateCampaign replaces the stored campaign with c.
func (s *InMemoryStore) UpdateCampaign(_ context.Context, c Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.campaigns.update(c) {
		return notFound("campaign", c.ID)
	}
	return nil
}

// DeleteCampaign removes a campaign.
func (s *InMemoryStore) DeleteCampaign(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns.delete(id)
	return nil
}

// LogActivity appends an entry to the brand's activity log.
func (s *InMemoryStore) LogActivity(_ context.Context, brandID, kind, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities.insert(Activity{
		BrandID:     brandID,
		Type:        kind,
		Description: description,
		CreatedAt:   s.now(),
	})
	return nil
}

// RecentActivities returns at most limit entries, newest first.
func (s *InMemoryStore) RecentActivities(_ context.Context, brandID string, limit int) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities.newestFirst(func(a Activity) bool { return a.BrandID == brandID }, limit), nil
}

// GetConversation returns the conversation with the given ID.
func (s *InMemoryStore) GetConversation(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations.get(id)
	if !ok {
		return Conversation{}, notFound("conversation", id)
	}
	return c, nil
}

// ListConversations returns the brand's conversations, most recently
// updated first.
func (s *InMemoryStore) ListConversations(_ context.Context, brandID string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.conversations.filter(func(c Conversation) bool { return c.BrandID == brandID })
	slices.SortStableFunc(out, func(a, b Conversation) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// CreateConversation stores c under a new ID.
func (s *InMemoryStore) CreateConversation(_ context.Context, c Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return s.conversations.insert(c), nil
}

// DeleteConversation removes a conversation and its messages.
func (s *InMemoryStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations.delete(id)
	s.messages.rows = slices.DeleteFunc(s.messages.rows, func(m ChatMessage) bool { return m.ConversationID == id })
	return nil
}

// AppendMessage stores m and bumps the conversation's UpdatedAt.
func (s *InMemoryStore) AppendMessage(_ context.Context, m ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if i := s.conversations.find(m.ConversationID); i >= 0 {
		s.conversations.rows[i].UpdatedAt = m.CreatedAt
	}
	return s.messages.insert(m), nil
}

// RecentMessages returns at most limit messages, newest first.
func (s *InMemoryStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.newestFirst(func(m ChatMessage) bool { return m.ConversationID == conversationID }, limit), nil
}

// GetSetting returns the value stored under key.
func (s *InMemoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// PutSetting stores value under key.
func (s *InMemoryStore) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}
