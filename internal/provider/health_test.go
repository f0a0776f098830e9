package provider

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeTime struct {
	mu      sync.Mutex
	current time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

func newTestBoard(cfg HealthConfig) (*HealthBoard, *fakeTime) {
	b := NewHealthBoard(cfg)
	ft := &fakeTime{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b.now = ft.Now
	return b, ft
}

func TestHealthBoard_UnknownUntilProbed(t *testing.T) {
	t.Parallel()
	b, _ := newTestBoard(HealthConfig{})

	if got := b.Status(OpenAI).State; got != StateUnknown {
		t.Errorf("state = %v, want unknown", got)
	}
	if !b.ShouldProbe(OpenAI) {
		t.Error("unprobed provider should be due")
	}
	if b.Degraded() {
		t.Error("empty board should not be degraded")
	}
}

func TestHealthBoard_ExponentialBackoff(t *testing.T) {
	t.Parallel()
	b, ft := newTestBoard(HealthConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		MaxFailures:    10,
	})

	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		b.Record(Gemini, false)
		if got := b.Status(Gemini).State; got != StateCooldown {
			t.Fatalf("iteration %d: state = %v, want cooldown", i, got)
		}
		if b.ShouldProbe(Gemini) {
			t.Errorf("iteration %d: should not be due before backoff", i)
		}
		ft.Advance(want)
		if !b.ShouldProbe(Gemini) {
			t.Errorf("iteration %d: should be due at exactly %v", i, want)
		}
	}
}

func TestHealthBoard_BackoffCap(t *testing.T) {
	t.Parallel()
	b, ft := newTestBoard(HealthConfig{
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		MaxFailures:    10,
	})

	b.Record(Ollama, false) // 4s
	b.Record(Ollama, false) // 8s
	b.Record(Ollama, false) // 16s capped to 10s

	st := b.Status(Ollama)
	if got := st.NextProbe.Sub(st.LastProbe); got != 10*time.Second {
		t.Errorf("backoff = %v, want 10s", got)
	}
	ft.Advance(10 * time.Second)
	if !b.ShouldProbe(Ollama) {
		t.Error("should be due after capped backoff")
	}
}

func TestHealthBoard_DeadAfterMaxFailures(t *testing.T) {
	t.Parallel()
	b, ft := newTestBoard(HealthConfig{InitialBackoff: time.Second, MaxBackoff: time.Minute, MaxFailures: 3})

	for range 3 {
		b.Record(OpenAI, false)
	}
	if got := b.Status(OpenAI).State; got != StateDead {
		t.Fatalf("state = %v, want dead", got)
	}
	if !b.Degraded() {
		t.Error("board with a dead provider should be degraded")
	}

	ft.Advance(59 * time.Second)
	if b.ShouldProbe(OpenAI) {
		t.Error("dead provider should wait MaxBackoff")
	}
	ft.Advance(time.Second)
	if !b.ShouldProbe(OpenAI) {
		t.Error("dead provider should be re-probed after MaxBackoff")
	}
}

func TestHealthBoard_RecoveryResetsBackoff(t *testing.T) {
	t.Parallel()
	b, _ := newTestBoard(HealthConfig{InitialBackoff: time.Second, MaxFailures: 2})

	b.Record(OpenAI, false)
	b.Record(OpenAI, false)
	b.Record(OpenAI, true)

	st := b.Status(OpenAI)
	if st.State != StateHealthy || st.Failures != 0 || !st.NextProbe.IsZero() {
		t.Fatalf("status after recovery = %+v", st)
	}

	b.Record(OpenAI, false)
	st = b.Status(OpenAI)
	if got := st.NextProbe.Sub(st.LastProbe); got != time.Second {
		t.Errorf("backoff after reset = %v, want 1s", got)
	}
}

func TestHealthBoard_OnChange(t *testing.T) {
	t.Parallel()
	b, _ := newTestBoard(HealthConfig{MaxFailures: 2})

	type transition struct{ from, to HealthState }
	var got []transition
	b.OnChange = func(id ID, from, to HealthState) {
		if id != Gemini {
			t.Errorf("id = %q", id)
		}
		got = append(got, transition{from, to})
	}

	b.Record(Gemini, true)  // unknown -> healthy
	b.Record(Gemini, true)  // no change
	b.Record(Gemini, false) // healthy -> cooldown
	b.Record(Gemini, false) // cooldown -> dead
	b.Record(Gemini, true)  // dead -> healthy

	want := []transition{
		{StateUnknown, StateHealthy},
		{StateHealthy, StateCooldown},
		{StateCooldown, StateDead},
		{StateDead, StateHealthy},
	}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHealthBoard_ReportSorted(t *testing.T) {
	t.Parallel()
	b, _ := newTestBoard(HealthConfig{})

	b.Record(Ollama, true)
	b.Record(Gemini, false)
	b.Record(OpenAI, true)

	report := b.Report()
	if len(report) != 3 {
		t.Fatalf("len = %d, want 3", len(report))
	}
	for i, id := range []ID{Gemini, Ollama, OpenAI} {
		if report[i].Provider != id {
			t.Errorf("report[%d] = %q, want %q", i, report[i].Provider, id)
		}
	}
}

func TestHealthBoard_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	b, ft := newTestBoard(HealthConfig{MaxFailures: 100})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			b.Record(OpenAI, i%2 == 0)
		}()
		go func() {
			defer wg.Done()
			b.ShouldProbe(OpenAI)
		}()
		go func() {
			defer wg.Done()
			ft.Advance(time.Millisecond)
			_ = b.Report()
		}()
	}
	wg.Wait()
}

func TestHealthConfig_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   HealthConfig
		want HealthConfig
	}{
		{"zero", HealthConfig{}, HealthConfig{30 * time.Second, 10 * time.Minute, 5}},
		{"negative", HealthConfig{-1, -2, -3}, HealthConfig{30 * time.Second, 10 * time.Minute, 5}},
		{"custom", HealthConfig{time.Second, time.Minute, 3}, HealthConfig{time.Second, time.Minute, 3}},
		{"max below initial", HealthConfig{time.Minute, time.Second, 3}, HealthConfig{time.Minute, time.Minute, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.in
			cfg.defaults()
			if cfg != tt.want {
				t.Errorf("defaults() = %+v, want %+v", cfg, tt.want)
			}
		})
	}
}

func TestHealthState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state HealthState
		want  string
	}{
		{StateUnknown, "unknown"},
		{StateHealthy, "healthy"},
		{StateCooldown, "cooldown"},
		{StateDead, "dead"},
		{HealthState(99), "invalid"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("HealthState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestHealthStatus_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	for _, st := range []HealthState{StateUnknown, StateHealthy, StateCooldown, StateDead} {
		in := HealthStatus{Provider: Gemini, State: st, Failures: 2}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", st, err)
		}
		var out HealthStatus
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if out != in {
			t.Errorf("round trip = %+v, want %+v", out, in)
		}
	}

	var st HealthState
	if err := st.UnmarshalText([]byte("invalid")); err == nil {
		t.Error("expected error for unknown label")
	}
}
