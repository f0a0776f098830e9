package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
)

// Source is the slice of memory.Store the assembler reads from.
type Source interface {
	GetBrand(ctx context.Context, id string) (memory.Brand, error)
	ListProjects(ctx context.Context, brandID string) ([]memory.Project, error)
	ListTasks(ctx context.Context, projectID string) ([]memory.Task, error)
	ListMembers(ctx context.Context, brandID string) ([]memory.Member, error)
	ListCampaigns(ctx context.Context, brandID string) ([]memory.Campaign, error)
	RecentActivities(ctx context.Context, brandID string, limit int) ([]memory.Activity, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]memory.ChatMessage, error)
}

// Assembler renders stored brand and conversation data into model input.
// It is safe for concurrent use when its Source is.
type Assembler struct {
	source Source
	config Config
	logger *slog.Logger
}

// NewAssembler creates an Assembler reading from source.
func NewAssembler(source Source, cfg Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assembler{source: source, config: cfg.withDefaults(), logger: logger}
}

// brandSnapshot is everything the brand block renders, read up front so
// rendering cannot fail halfway.
type brandSnapshot struct {
	brand       memory.Brand
	projects    []memory.Project
	activeTasks []memory.Task
	members     []memory.Member
	campaigns   []memory.Campaign
	activities  []memory.Activity
}

// BuildBrandContext renders the brand block for brandID. It returns an
// empty string when brandID is empty or names no stored brand. Only
// store failures are reported as errors.
func (a *Assembler) BuildBrandContext(ctx context.Context, brandID string) (string, error) {
	if brandID == "" {
		return "", nil
	}

	snap, err := a.load(ctx, brandID)
	if errors.Is(err, memory.ErrNotFound) {
		a.logger.Debug("brand context: brand not found", "brand_id", brandID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return a.render(snap), nil
}

func (a *Assembler) load(ctx context.Context, brandID string) (brandSnapshot, error) {
	var (
		snap brandSnapshot
		err  error
	)
	if snap.brand, err = a.source.GetBrand(ctx, brandID); err != nil {
		return brandSnapshot{}, err
	}
	if snap.projects, err = a.source.ListProjects(ctx, brandID); err != nil {
		return brandSnapshot{}, fmt.Errorf("brand context: list projects: %w", err)
	}
	for _, p := range snap.projects {
		tasks, err := a.source.ListTasks(ctx, p.ID)
		if err != nil {
			return brandSnapshot{}, fmt.Errorf("brand context: list tasks of %s: %w", p.ID, err)
		}
		for _, t := range tasks {
			if t.Active() {
				snap.activeTasks = append(snap.activeTasks, t)
			}
		}
	}
	if snap.members, err = a.source.ListMembers(ctx, brandID); err != nil {
		return brandSnapshot{}, fmt.Errorf("brand context: list members: %w", err)
	}
	if snap.campaigns, err = a.source.ListCampaigns(ctx, brandID); err != nil {
		return brandSnapshot{}, fmt.Errorf("brand context: list campaigns: %w", err)
	}
	if snap.activities, err = a.source.RecentActivities(ctx, brandID, a.config.RecentActivities); err != nil {
		return brandSnapshot{}, fmt.Errorf("brand context: recent activities: %w", err)
	}
	return snap, nil
}

func (a *Assembler) render(s brandSnapshot) string {
	var b strings.Builder
	b.WriteString("## Brand Context\n")

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "**%s**: %s\n", label, value)
		}
	}
	field("Name", s.brand.Name)
	field("Tagline", s.brand.Tagline)
	field("Mission", s.brand.Mission)
	field("Vision", s.brand.Vision)
	field("Industry", s.brand.Industry)
	field("Target Audience", s.brand.Audience)
	field("Tone of Voice", s.brand.Tone)
	field("Brand Colors", strings.Join(s.brand.Colors, ", "))
	field("Typography", s.brand.Fonts)

	if len(s.projects) > 0 {
		fmt.Fprintf(&b, "\n## Projects (%d)\n", len(s.projects))
		for _, p := range s.projects {
			fmt.Fprintf(&b, "- **%s** — Status: %s\n", p.Name, p.Status)
		}
	}

	if len(s.activeTasks) > 0 {
		fmt.Fprintf(&b, "\n## Active Tasks (%d)\n", len(s.activeTasks))
		for _, t := range s.activeTasks[:min(len(s.activeTasks), a.config.MaxActiveTasks)] {
			fmt.Fprintf(&b, "- [%s] %s", t.Status, t.Title)
			if t.Priority != "" {
				fmt.Fprintf(&b, " (Priority: %s)", t.Priority)
			}
			b.WriteByte('\n')
		}
	}

	if len(s.members) > 0 {
		fmt.Fprintf(&b, "\n## Team (%d)\n", len(s.members))
		for _, m := range s.members {
			b.WriteString("- " + m.Name)
			if m.Role != "" {
				b.WriteString(" — " + m.Role)
			}
			b.WriteByte('\n')
		}
	}

	if len(s.campaigns) > 0 {
		fmt.Fprintf(&b, "\n## Marketing Campaigns (%d)\n", len(s.campaigns))
		for _, c := range s.campaigns {
			fmt.Fprintf(&b, "- **%s** — Status: %s\n", c.Name, c.Status)
		}
	}

	if len(s.activities) > 0 {
		b.WriteString("\n## Recent Activity\n")
		for _, act := range s.activities {
			fmt.Fprintf(&b, "- %s (%s)\n", act.Description, act.Type)
		}
	}

	return b.String()
}

// BuildConversationContext returns the last limit turns of a conversation,
// oldest first, reduced to role and content. A non-positive limit uses
// the configured default.
func (a *Assembler) BuildConversationContext(ctx context.Context, conversationID string, limit int) ([]provider.Message, error) {
	if limit <= 0 {
		limit = a.config.HistoryLimit
	}
	recent, err := a.source.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation context: %w", err)
	}
	if len(recent) > limit {
		recent = recent[:limit]
	}

	out := make([]provider.Message, 0, len(recent))
	for _, m := range recent {
		out = append(out, provider.Message{Role: provider.Role(m.Role), Content: m.Content})
	}
	slices.Reverse(out)
	return out, nil
}

// SystemPreamble builds the full system prompt for brandID.
func (a *Assembler) SystemPreamble(ctx context.Context, brandID string) (string, error) {
	block, err := a.BuildBrandContext(ctx, brandID)
	if err != nil {
		return "", err
	}
	return BuildSystemPrompt(block), nil
}
