package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/memory"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	ctx := core.NewAppContext(slog.New(slog.DiscardHandler), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m
}

// --- Brand tests ---

func TestBrandRoundTripWithColors(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	in := memory.Brand{
		Name:     "Acme",
		Tagline:  "We make things",
		Industry: "Manufacturing",
		Tone:     "Friendly",
		Colors:   []string{"#FF0000", "#00FF00"},
	}
	id, err := s.CreateBrand(ctx, in)
	if err != nil {
		t.Fatalf("create brand: %v", err)
	}

	got, err := s.GetBrand(ctx, id)
	if err != nil {
		t.Fatalf("get brand: %v", err)
	}
	in.ID = id
	in.CreatedAt = got.CreatedAt
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("brand mismatch (-want +got):\n%s", diff)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestBrandNotFound(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	if _, err := s.GetBrand(ctx, "missing"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("get missing = %v, want ErrNotFound", err)
	}
	if err := s.UpdateBrand(ctx, memory.Brand{ID: "missing", Name: "x"}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestBrandUpdateClearsColors(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	id, _ := s.CreateBrand(ctx, memory.Brand{Name: "Acme", Colors: []string{"#000"}})
	b, _ := s.GetBrand(ctx, id)
	b.Colors = nil
	b.Name = "Acme Inc"
	if err := s.UpdateBrand(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetBrand(ctx, id)
	if got.Name != "Acme Inc" || len(got.Colors) != 0 {
		t.Errorf("after update = %+v", got)
	}
}

func TestListBrandsInCreationOrder(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		if _, err := s.CreateBrand(ctx, memory.Brand{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	brands, err := s.ListBrands(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, b := range brands {
		names = append(names, b.Name)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

// --- Work tests ---

func TestDeleteProjectCascadesTasks(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	p1, _ := s.CreateProject(ctx, memory.Project{BrandID: "b", Name: "Launch", Status: "active"})
	p2, _ := s.CreateProject(ctx, memory.Project{BrandID: "b", Name: "Rebrand", Status: "active"})
	_, _ = s.CreateTask(ctx, memory.Task{ProjectID: p1, Title: "copy", Status: "todo"})
	_, _ = s.CreateTask(ctx, memory.Task{ProjectID: p2, Title: "logo", Status: "todo"})

	if err := s.DeleteProject(ctx, p1); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	projects, _ := s.ListProjects(ctx, "b")
	if len(projects) != 1 || projects[0].ID != p2 {
		t.Errorf("projects = %+v", projects)
	}
	if tasks, _ := s.ListTasks(ctx, p1); len(tasks) != 0 {
		t.Errorf("orphan tasks = %d", len(tasks))
	}
	if tasks, _ := s.ListTasks(ctx, p2); len(tasks) != 1 {
		t.Errorf("kept tasks = %d, want 1", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	id, _ := s.CreateTask(ctx, memory.Task{ProjectID: "p", Title: "copy", Status: "todo", Priority: "high"})
	if err := s.UpdateTask(ctx, memory.Task{ID: id, ProjectID: "p", Title: "copy", Status: memory.TaskDone}); err != nil {
		t.Fatalf("update: %v", err)
	}
	tasks, _ := s.ListTasks(ctx, "p")
	if len(tasks) != 1 || tasks[0].Active() || tasks[0].Priority != "" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestTeamAndCampaigns(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	_, _ = s.CreateMember(ctx, memory.Member{BrandID: "b", Name: "Ana", Role: "Designer"})
	cid, _ := s.CreateCampaign(ctx, memory.Campaign{BrandID: "b", Name: "Spring", Status: "draft"})
	if err := s.UpdateCampaign(ctx, memory.Campaign{ID: cid, Name: "Spring", Status: "active"}); err != nil {
		t.Fatalf("update campaign: %v", err)
	}

	members, _ := s.ListMembers(ctx, "b")
	if len(members) != 1 || members[0].Role != "Designer" {
		t.Errorf("members = %+v", members)
	}
	campaigns, _ := s.ListCampaigns(ctx, "b")
	if len(campaigns) != 1 || campaigns[0].Status != "active" {
		t.Errorf("campaigns = %+v", campaigns)
	}
	if other, _ := s.ListCampaigns(ctx, "other"); len(other) != 0 {
		t.Errorf("campaigns leaked across brands: %+v", other)
	}
}

// --- Activity and conversation tests ---

func TestRecentActivitiesNewestFirst(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	for i := range 12 {
		if err := s.LogActivity(ctx, "b", "note", fmt.Sprintf("a%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentActivities(ctx, "b", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 10 || got[0].Description != "a11" || got[9].Description != "a2" {
		t.Errorf("recent = %d entries, first %q last %q", len(got), got[0].Description, got[len(got)-1].Description)
	}

	all, _ := s.RecentActivities(ctx, "b", 0)
	if len(all) != 12 {
		t.Errorf("unbounded = %d, want 12", len(all))
	}
}

func TestConversationMessages(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c1, _ := s.CreateConversation(ctx, memory.Conversation{BrandID: "b", Title: "first", CreatedAt: base})
	c2, _ := s.CreateConversation(ctx, memory.Conversation{BrandID: "b", Title: "second", CreatedAt: base.Add(time.Minute)})

	for i := range 5 {
		_, err := s.AppendMessage(ctx, memory.ChatMessage{
			ConversationID: c1,
			Role:           "user",
			Content:        fmt.Sprintf("m%d", i+1),
			CreatedAt:      base.Add(time.Hour + time.Duration(i)*time.Millisecond),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := s.RecentMessages(ctx, c1, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	var got []string
	for _, m := range recent {
		got = append(got, m.Content)
	}
	if diff := cmp.Diff([]string{"m5", "m4", "m3"}, got); diff != "" {
		t.Errorf("recent mismatch (-want +got):\n%s", diff)
	}

	conv, err := s.GetConversation(ctx, c1)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if want := base.Add(time.Hour + 4*time.Millisecond); !conv.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", conv.UpdatedAt, want)
	}

	list, _ := s.ListConversations(ctx, "b")
	if len(list) != 2 || list[0].ID != c1 || list[1].ID != c2 {
		t.Errorf("list order = %+v", list)
	}

	if err := s.DeleteConversation(ctx, c1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetConversation(ctx, c1); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("get deleted = %v, want ErrNotFound", err)
	}
	if msgs, _ := s.RecentMessages(ctx, c1, 0); len(msgs) != 0 {
		t.Errorf("messages survived delete: %d", len(msgs))
	}
}

func TestSettings(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, memory.SettingDefaultProvider); err != nil || ok {
		t.Fatalf("unset setting = ok %v, err %v", ok, err)
	}
	for _, v := range []string{"openai", "ollama"} {
		if err := s.PutSetting(ctx, memory.SettingDefaultProvider, v); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	v, ok, err := s.GetSetting(ctx, memory.SettingDefaultProvider)
	if err != nil || !ok || v != "ollama" {
		t.Errorf("setting = %q, %v, %v; want ollama", v, ok, err)
	}
}

// --- Concurrency tests ---

func TestConcurrentAppend(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()
	conv, _ := s.CreateConversation(ctx, memory.Conversation{BrandID: "b"})

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			_, err := s.AppendMessage(ctx, memory.ChatMessage{
				ConversationID: conv,
				Role:           "user",
				Content:        fmt.Sprintf("message %d", i),
			})
			if err != nil {
				t.Errorf("concurrent append: %v", err)
			}
		})
	}
	for range 5 {
		wg.Go(func() {
			if _, err := s.RecentMessages(ctx, conv, 5); err != nil {
				t.Errorf("concurrent read: %v", err)
			}
		})
	}
	wg.Wait()

	all, _ := s.RecentMessages(ctx, conv, 0)
	if len(all) != 10 {
		t.Errorf("len = %d, want 10", len(all))
	}
}

// --- Infrastructure tests ---

func TestWALMode(t *testing.T) {
	m := newTestModule(t)

	var mode string
	if err := m.db.QueryRowContext(context.TODO(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("pragma journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestMigrationIdempotent(t *testing.T) {
	m := newTestModule(t)

	if err := migrate(context.Background(), m.db); err != nil {
		t.Fatalf("second migration: %v", err)
	}
	if _, err := m.store.CreateBrand(context.Background(), memory.Brand{Name: "after"}); err != nil {
		t.Fatalf("create after re-migration: %v", err)
	}
}

func TestProvisionPublishesStore(t *testing.T) {
	dir := t.TempDir()
	app := core.NewAppContext(slog.New(slog.DiscardHandler), dir)

	m := &Module{}
	if err := m.Provision(app); err != nil {
		t.Fatalf("provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if m.config.Path != filepath.Join(dir, defaultDBFile) {
		t.Errorf("path = %q", m.config.Path)
	}
	svc, ok := app.Service(memory.StoreService)
	if !ok {
		t.Fatal("store service not registered")
	}
	if _, ok := svc.(memory.Store); !ok {
		t.Errorf("service type = %T", svc)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := memory.SetCurrentBrand(context.Background(), s, "b1"); err != nil {
		t.Fatalf("set current brand: %v", err)
	}
}
