package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flemzord/brandai/internal/memory"
)

func contents(msgs []memory.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestInMemoryStore_BrandCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	colors := []string{"#000", "#fff"}
	id, err := store.CreateBrand(ctx, memory.Brand{Name: "Acme", Colors: colors})
	if err != nil {
		t.Fatalf("CreateBrand: %v", err)
	}
	if id == "" {
		t.Fatal("CreateBrand returned empty ID")
	}
	colors[0] = "#123"

	got, err := store.GetBrand(ctx, id)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	if got.Name != "Acme" || got.CreatedAt.IsZero() {
		t.Errorf("GetBrand = %+v", got)
	}
	if diff := cmp.Diff([]string{"#000", "#fff"}, got.Colors); diff != "" {
		t.Errorf("colors mismatch (-want +got):\n%s", diff)
	}

	got.Tone = "playful"
	if err := store.UpdateBrand(ctx, got); err != nil {
		t.Fatalf("UpdateBrand: %v", err)
	}
	if b, _ := store.GetBrand(ctx, id); b.Tone != "playful" {
		t.Errorf("Tone = %q, want playful", b.Tone)
	}

	if err := store.UpdateBrand(ctx, memory.Brand{ID: "missing"}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("UpdateBrand(missing) = %v, want ErrNotFound", err)
	}

	if err := store.DeleteBrand(ctx, id); err != nil {
		t.Fatalf("DeleteBrand: %v", err)
	}
	if _, err := store.GetBrand(ctx, id); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("GetBrand after delete = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStore_DeleteProjectCascadesTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	p1, _ := store.CreateProject(ctx, memory.Project{BrandID: "b", Name: "Launch"})
	p2, _ := store.CreateProject(ctx, memory.Project{BrandID: "b", Name: "Rebrand"})
	_, _ = store.CreateTask(ctx, memory.Task{ProjectID: p1, Title: "a"})
	_, _ = store.CreateTask(ctx, memory.Task{ProjectID: p2, Title: "b"})

	if err := store.DeleteProject(ctx, p1); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	projects, _ := store.ListProjects(ctx, "b")
	if len(projects) != 1 || projects[0].ID != p2 {
		t.Errorf("ListProjects = %+v, want only %s", projects, p2)
	}
	if tasks, _ := store.ListTasks(ctx, p1); len(tasks) != 0 {
		t.Errorf("tasks of deleted project = %d, want 0", len(tasks))
	}
	if tasks, _ := store.ListTasks(ctx, p2); len(tasks) != 1 {
		t.Errorf("tasks of kept project = %d, want 1", len(tasks))
	}
}

func TestInMemoryStore_ListsScopedByBrand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	_, _ = store.CreateMember(ctx, memory.Member{BrandID: "a", Name: "Ana"})
	_, _ = store.CreateMember(ctx, memory.Member{BrandID: "b", Name: "Bo"})
	_, _ = store.CreateCampaign(ctx, memory.Campaign{BrandID: "a", Name: "Spring", Status: "active"})

	members, _ := store.ListMembers(ctx, "a")
	if len(members) != 1 || members[0].Name != "Ana" {
		t.Errorf("ListMembers(a) = %+v", members)
	}
	if campaigns, _ := store.ListCampaigns(ctx, "b"); len(campaigns) != 0 {
		t.Errorf("ListCampaigns(b) = %+v, want none", campaigns)
	}
}

func TestInMemoryStore_RecentActivitiesNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	for i := range 5 {
		if err := store.LogActivity(ctx, "b", "note", fmt.Sprintf("a%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	_ = store.LogActivity(ctx, "other", "note", "x")

	got, err := store.RecentActivities(ctx, "b", 3)
	if err != nil {
		t.Fatalf("RecentActivities: %v", err)
	}
	var descs []string
	for _, a := range got {
		descs = append(descs, a.Description)
	}
	if diff := cmp.Diff([]string{"a4", "a3", "a2"}, descs); diff != "" {
		t.Errorf("activities mismatch (-want +got):\n%s", diff)
	}
}

func TestInMemoryStore_Conversations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c1, _ := store.CreateConversation(ctx, memory.Conversation{BrandID: "b", Title: "one", CreatedAt: base})
	c2, _ := store.CreateConversation(ctx, memory.Conversation{BrandID: "b", Title: "two", CreatedAt: base.Add(time.Minute)})

	for i := range 5 {
		_, err := store.AppendMessage(ctx, memory.ChatMessage{
			ConversationID: c1,
			Role:           "user",
			Content:        fmt.Sprintf("m%d", i+1),
			CreatedAt:      base.Add(time.Hour + time.Duration(i)*time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	recent, err := store.RecentMessages(ctx, c1, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if diff := cmp.Diff([]string{"m5", "m4", "m3"}, contents(recent)); diff != "" {
		t.Errorf("recent mismatch (-want +got):\n%s", diff)
	}

	list, _ := store.ListConversations(ctx, "b")
	if len(list) != 2 || list[0].ID != c1 || list[1].ID != c2 {
		t.Errorf("ListConversations order = %+v, want c1 (updated) first", list)
	}

	if err := store.DeleteConversation(ctx, c1); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := store.GetConversation(ctx, c1); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("GetConversation after delete = %v, want ErrNotFound", err)
	}
	if msgs, _ := store.RecentMessages(ctx, c1, 0); len(msgs) != 0 {
		t.Errorf("messages survived delete: %d", len(msgs))
	}
}

func TestCurrentBrand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()

	if _, err := memory.CurrentBrand(ctx, store); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("CurrentBrand unset = %v, want ErrNotFound", err)
	}

	id, _ := store.CreateBrand(ctx, memory.Brand{Name: "Acme"})
	if err := memory.SetCurrentBrand(ctx, store, id); err != nil {
		t.Fatalf("SetCurrentBrand: %v", err)
	}
	b, err := memory.CurrentBrand(ctx, store)
	if err != nil || b.ID != id {
		t.Errorf("CurrentBrand = %+v, %v; want %s", b, err, id)
	}
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()
	conv, _ := store.CreateConversation(ctx, memory.Conversation{BrandID: "b"})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			_, _ = store.AppendMessage(ctx, memory.ChatMessage{ConversationID: conv, Content: fmt.Sprint(i)})
			_, _ = store.RecentMessages(ctx, conv, 5)
		})
	}
	wg.Wait()

	all, _ := store.RecentMessages(ctx, conv, 0)
	if len(all) != 50 {
		t.Errorf("messages = %d, want 50", len(all))
	}
}
