package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/config"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/internal/provider/providertest"
	"github.com/flemzord/brandai/internal/security"
	"github.com/google/go-cmp/cmp"
	"github.com/kardianos/service"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"
)

// echoAdapter replies "re: <last user message>".
func echoAdapter() *providertest.MockAdapter {
	return &providertest.MockAdapter{
		StreamFunc: func(_ context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
			last := req.Messages[len(req.Messages)-1].Content
			return providertest.Chunks("re: ", last), nil
		},
	}
}

func newTestRouter(t *testing.T, adapters map[provider.ID]*providertest.MockAdapter) *chat.Router {
	t.Helper()
	reg := provider.NewRegistry()
	for id, a := range adapters {
		if err := reg.Register(provider.Entry{
			Descriptor: provider.Descriptor{ID: id, Name: string(id), Endpoint: "http://" + string(id) + ".test", DefaultModel: "m"},
			Adapter:    a,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return chat.NewRouter(reg,
		chat.WithHealthBoard(provider.NewHealthBoard(provider.HealthConfig{})),
		chat.WithDefaultProvider(provider.Ollama),
	)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"brandai dev", "provider.openai", "provider.gemini", "provider.ollama", "gateway.http", "memory.sqlite", "cron.probe"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("version output missing %q:\n%s", want, out.String())
		}
	}
}

func TestChatSession_KeepsHistory(t *testing.T) {
	t.Parallel()

	mock := echoAdapter()
	var out bytes.Buffer
	s := &chatSession{router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: mock}), out: &out}

	ctx := context.Background()
	if _, err := s.turn(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	reply, err := s.turn(ctx, "two")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "re: two" {
		t.Errorf("reply = %q", reply)
	}
	if got := out.String(); got != "re: one\nre: two\n" {
		t.Errorf("output = %q", got)
	}

	want := []provider.Message{
		{Role: provider.RoleUser, Content: "one"},
		{Role: provider.RoleAssistant, Content: "re: one"},
		{Role: provider.RoleUser, Content: "two"},
	}
	if diff := cmp.Diff(want, mock.Request().Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestChatSession_FailedTurnLeavesHistory(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockAdapter{
		StreamFunc: func(context.Context, provider.Request) (<-chan provider.StreamChunk, error) {
			return nil, errors.New("backend down")
		},
	}
	s := &chatSession{router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: mock}), out: &bytes.Buffer{}}
	if _, err := s.turn(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.history) != 0 {
		t.Errorf("history = %v, want empty", s.history)
	}
}

func TestChatSession_REPL(t *testing.T) {
	t.Parallel()

	mock := echoAdapter()
	var out, errOut bytes.Buffer
	s := &chatSession{router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: mock}), out: &out}

	in := strings.NewReader("hello\n\n/reset\nagain\n/exit\nignored\n")
	if err := s.repl(context.Background(), in, &errOut); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "re: hello\nre: again\n" {
		t.Errorf("output = %q", got)
	}
	if got := len(mock.Request().Messages); got != 1 {
		t.Errorf("messages after /reset = %d, want 1", got)
	}
	if stream, _ := mock.Calls(); stream != 2 {
		t.Errorf("stream calls = %d, want 2", stream)
	}
}

func TestChatSession_REPLReportsErrors(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	s := &chatSession{
		router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: echoAdapter()}),
		opts:   chatOptions{provider: "nope"},
		out:    &out,
	}
	if err := s.repl(context.Background(), strings.NewReader("hello\n"), &errOut); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut.String(), "error:") {
		t.Errorf("stderr = %q, want an error line", errOut.String())
	}
}

func TestChatSession_StoredConversation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()
	convID, err := store.CreateConversation(ctx, memory.Conversation{Title: "Ideas"})
	if err != nil {
		t.Fatal(err)
	}

	s := &chatSession{
		router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: echoAdapter()}),
		store:  store,
		opts:   chatOptions{conversation: convID},
		out:    &bytes.Buffer{},
	}
	if _, err := s.turn(ctx, "name ideas?"); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.RecentMessages(ctx, convID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs))
	}
	if len(s.history) != 0 {
		t.Error("stored conversations must not use the in-memory history")
	}
}

func TestRunTests(t *testing.T) {
	t.Parallel()

	adapters := map[provider.ID]*providertest.MockAdapter{
		provider.Ollama: {},
		provider.Gemini: {ProbeFunc: func(context.Context, string) error { return errors.New("401") }},
	}
	router := newTestRouter(t, adapters)

	var out bytes.Buffer
	err := runTests(context.Background(), &out, router, nil, "")
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("err = %v, want 1 of 2 failed", err)
	}
	if !strings.Contains(out.String(), "gemini     FAILED") || !strings.Contains(out.String(), "ollama     ok") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := runTests(context.Background(), &out, router, []string{"ollama"}, "key"); err != nil {
		t.Fatalf("single test: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "ollama     ok" {
		t.Errorf("output = %q", got)
	}
}

func TestPrintProviders(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := printProviders(&out, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No providers") {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	ds := []provider.Descriptor{{ID: provider.OpenAI, Name: "OpenAI", DefaultModel: "gpt-4o-mini", Endpoint: "https://api.openai.com/v1/chat/completions"}}
	if err := printProviders(&out, ds); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "openai") || !strings.Contains(lines[1], "gpt-4o-mini") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRenderConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		answers     initAnswers
		wantModules []string
		wantKey     string
	}{
		{
			name:        "openai from env",
			answers:     initAnswers{Provider: "openai", Persistent: true},
			wantModules: []string{"memory.sqlite", "provider.openai"},
			wantKey:     "${OPENAI_API_KEY}",
		},
		{
			name:        "gemini with key and gateway",
			answers:     initAnswers{Provider: "gemini", APIKey: "AIza-typed", Gateway: true, Bind: "0.0.0.0:9000", Token: "tok", Probe: true},
			wantModules: []string{"provider.gemini", "cron.probe", "gateway.http"},
			wantKey:     "AIza-typed",
		},
		{
			name:        "ollama needs no key",
			answers:     initAnswers{Provider: "ollama", Model: "llama3"},
			wantModules: []string{"provider.ollama"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := renderConfig(tt.answers)
			if err != nil {
				t.Fatal(err)
			}
			var cfg config.Config
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				t.Fatalf("unmarshal: %v\n%s", err, data)
			}
			if err := config.Validate(&cfg); err != nil {
				t.Fatalf("generated config invalid: %v\n%s", err, data)
			}
			if diff := cmp.Diff(tt.wantModules, config.Resolve(&cfg)); diff != "" {
				t.Errorf("modules mismatch (-want +got):\n%s", diff)
			}
			if cfg.Chat.Provider != tt.answers.Provider {
				t.Errorf("chat.provider = %q", cfg.Chat.Provider)
			}

			var p struct {
				APIKey string `yaml:"api_key"`
			}
			node := cfg.Modules[config.ProviderModuleID(tt.answers.Provider)]
			if err := node.Decode(&p); err != nil {
				t.Fatal(err)
			}
			if p.APIKey != tt.wantKey {
				t.Errorf("api_key = %q, want %q", p.APIKey, tt.wantKey)
			}
		})
	}
}

func TestPrintRedactedConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "brandai.yaml")
	raw := `version: "1"
modules:
  provider.openai:
    api_key: sk-abcdefghijklmnopqrstuvwxyz123456
    model: gpt-4o-mini
  gateway.http:
    auth:
      bearer_token: hunter2hunter2
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := printRedactedConfig(&out, path, security.NewRedactor()); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, secret := range []string{"sk-abcdefghijklmnopqrstuvwxyz123456", "hunter2hunter2"} {
		if strings.Contains(got, secret) {
			t.Errorf("secret %q not redacted:\n%s", secret, got)
		}
	}
	if !strings.Contains(got, "gpt-4o-mini") {
		t.Errorf("non-secret value lost:\n%s", got)
	}
}

func TestServiceConfig(t *testing.T) {
	t.Parallel()

	cfg, err := serviceConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"service", "run"}, cfg.Arguments); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}

	cfg, err = serviceConfig("conf/brandai.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Arguments) != 4 || !filepath.IsAbs(cfg.Arguments[3]) {
		t.Errorf("arguments = %v, want an absolute config path", cfg.Arguments)
	}
	if cfg.Name != "brandai" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	tests := map[service.Status]string{
		service.StatusRunning: "running",
		service.StatusStopped: "stopped",
		service.StatusUnknown: "not installed",
	}
	for st, want := range tests {
		if got := statusLabel(st); got != want {
			t.Errorf("statusLabel(%v) = %q, want %q", st, got, want)
		}
	}
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			return tc.Text
		case *mcp.TextContent:
			return tc.Text
		}
	}
	t.Fatalf("no text content in %+v", res)
	return ""
}

func TestMCPTools_SendMessage(t *testing.T) {
	t.Parallel()

	mock := echoAdapter()
	tools := &mcpTools{router: newTestRouter(t, map[provider.ID]*providertest.MockAdapter{provider.Ollama: mock}), store: memory.NewInMemoryStore()}
	ctx := context.Background()

	res, err := tools.sendMessage(ctx, callTool("send_message", map[string]any{"message": "hi", "model": "llama3"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "re: hi" {
		t.Errorf("reply = %q", got)
	}
	if got := mock.Request().Model; got != "llama3" {
		t.Errorf("model = %q, want llama3", got)
	}

	res, err = tools.sendMessage(ctx, callTool("send_message", map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing message should be a tool error")
	}

	res, err = tools.sendMessage(ctx, callTool("send_message", map[string]any{"message": "hi", "conversation_id": "missing"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("unknown conversation should be a tool error")
	}
}

func TestMCPTools_TestConnectionAndList(t *testing.T) {
	t.Parallel()

	adapters := map[provider.ID]*providertest.MockAdapter{
		provider.Ollama: {},
		provider.OpenAI: {ProbeFunc: func(context.Context, string) error { return errors.New("401") }},
	}
	tools := &mcpTools{router: newTestRouter(t, adapters)}
	ctx := context.Background()

	res, err := tools.testConnection(ctx, callTool("test_connection", map[string]any{"provider": "openai"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != `{"provider":"openai","ok":false}` {
		t.Errorf("result = %s", got)
	}
	res, err = tools.testConnection(ctx, callTool("test_connection", map[string]any{"provider": "ollama"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != `{"provider":"ollama","ok":true}` {
		t.Errorf("result = %s", got)
	}

	res, err = tools.listProviders(ctx, callTool("list_providers", nil))
	if err != nil {
		t.Fatal(err)
	}
	got := resultText(t, res)
	for _, want := range []string{`"id":"ollama"`, `"state":"healthy"`, `"id":"openai"`, `"state":"cooldown"`} {
		if !strings.Contains(got, want) {
			t.Errorf("list missing %s: %s", want, got)
		}
	}
}
