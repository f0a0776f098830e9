// Package memory defines the brand workspace entities and the store
// interface through which they are read and written, with an in-memory
// implementation. Persistent implementations live under modules/memory.
package memory

import (
	"context"
	"errors"
	"time"
)

// StoreService is the AppContext service name under which a Store is
// published.
const StoreService = "memory.store"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("memory: not found")

// Well-known setting keys.
const (
	SettingCurrentBrand    = "current_brand_id"
	SettingDefaultProvider = "default_provider"
	// SettingModelPrefix is followed by a provider ID, e.g. "model.openai".
	SettingModelPrefix = "model."
)

// TaskDone is the terminal task status. Tasks in any other status are active.
const TaskDone = "done"

// Brand is the identity of one business.
type Brand struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tagline   string    `json:"tagline,omitempty"`
	Mission   string    `json:"mission,omitempty"`
	Vision    string    `json:"vision,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Audience  string    `json:"audience,omitempty"`
	Tone      string    `json:"tone,omitempty"`
	Colors    []string  `json:"colors,omitempty"`
	Fonts     string    `json:"fonts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Project groups tasks under a brand.
type Project struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a unit of work in a project.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Priority  string `json:"priority,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
}

// Active reports whether the task is not done.
func (t Task) Active() bool { return t.Status != TaskDone }

// Member is a person on a brand's team.
type Member struct {
	ID      string `json:"id"`
	BrandID string `json:"brand_id"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Campaign is a marketing campaign.
type Campaign struct {
	ID      string `json:"id"`
	BrandID string `json:"brand_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// Activity is one entry of a brand's activity log.
type Activity struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Conversation is a chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id,omitempty"`
	Title     string    `json:"title"`
	Type      string    `json:"type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one stored turn of a conversation.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// BrandStore manages brands. Get and Update return ErrNotFound for
// unknown IDs.
type BrandStore interface {
	GetBrand(ctx context.Context, id string) (Brand, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	CreateBrand(ctx context.Context, b Brand) (string, error)
	UpdateBrand(ctx context.Context, b Brand) error
	DeleteBrand(ctx context.Context, id string) error
}

// WorkStore manages projects and their tasks. Lists are in creation order.
type WorkStore interface {
	ListProjects(ctx context.Context, brandID string) ([]Project, error)
	CreateProject(ctx context.Context, p Project) (string, error)
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error

	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	CreateTask(ctx context.Context, t Task) (string, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
}

// TeamStore manages team members and campaigns. Lists are in creation order.
type TeamStore interface {
	ListMembers(ctx context.Context, brandID string) ([]Member, error)
	CreateMember(ctx context.Context, m Member) (string, error)
	DeleteMember(ctx context.Context, id string) error

	ListCampaigns(ctx context.Context, brandID string) ([]Campaign, error)
	CreateCampaign(ctx context.Context, c Campaign) (string, error)
	UpdateCampaign(ctx context.Context, c Campaign) error
	DeleteCampaign(ctx context.Context, id string) error
}

// ActivityLog records what happened to a brand.
type ActivityLog interface {
	LogActivity(ctx context.Context, brandID, kind, description string) error
	// RecentActivities returns at most limit entries, newest first.
	RecentActivities(ctx context.Context, brandID string, limit int) ([]Activity, error)
}

// ConversationStore manages conversations and their messages.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversations(ctx context.Context, brandID string) ([]Conversation, error)
	CreateConversation(ctx context.Context, c Conversation) (string, error)
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// AppendMessage stores a turn and bumps the conversation's UpdatedAt.
	AppendMessage(ctx context.Context, m ChatMessage) (string, error)
	// RecentMessages returns at most limit messages, newest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]ChatMessage, error)
}

// SettingsStore is a small key/value store.
type SettingsStore interface {
	// GetSetting returns the value and whether it was set.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Store is the full collaborator interface. Implementations must be safe
// for concurrent use and generate entity IDs on create.
type Store interface {
	BrandStore
	WorkStore
	TeamStore
	ActivityLog
	ConversationStore
	SettingsStore
}

// CurrentBrand returns the brand selected by the current_brand_id setting.
// It returns ErrNotFound when no brand is selected.
func CurrentBrand(ctx context.Context, s Store) (Brand, error) {
	id, ok, err := s.GetSetting(ctx, SettingCurrentBrand)
	if err != nil {
		return Brand{}, err
	}
	if !ok || id == "" {
		return Brand{}, ErrNotFound
	}
	return s.GetBrand(ctx, id)
}

// SetCurrentBrand records id as the current brand.
func SetCurrentBrand(ctx context.Context, s Store, id string) error {
	return s.PutSetting(ctx, SettingCurrentBrand, id)
}
