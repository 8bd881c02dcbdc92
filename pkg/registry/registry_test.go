package registry

import (
	"context"
	"testing"

	"github.com/axt-team/axtgate/pkg/event"
)

func named(tag string, hits *[]string) Handler {
	return func(ctx context.Context, ev *event.Event) error {
		*hits = append(*hits, tag)
		return nil
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	var hits []string
	r := New()
	r.Register("ping", []string{"Ping", "/PING"}, nil, named("ping", &hits))

	for _, token := range []string{"ping", "PING", "/ping", "/Ping"} {
		if h := r.Resolve(token, event.KindGroupMessage); h == nil {
			t.Errorf("Resolve(%q) = nil, want handler", token)
		}
	}
	if h := r.Resolve("pong", event.KindGroupMessage); h != nil {
		t.Error("Resolve(unregistered) should be nil")
	}
}

func TestSameSourceReRegisterIsIdempotent(t *testing.T) {
	var hits []string
	r := New()
	r.Register("plug", []string{"cmd"}, nil, named("v1", &hits))
	r.Register("plug", []string{"cmd"}, nil, named("v2", &hits))

	if got := len(r.Commands()); got != 1 {
		t.Fatalf("Commands() has %d entries, want 1", got)
	}
	h := r.Resolve("cmd", event.KindGroupMessage)
	if h == nil {
		t.Fatal("Resolve returned nil")
	}
	h(context.Background(), nil)
	if len(hits) != 1 || hits[0] != "v2" {
		t.Errorf("hits = %v, want latest registration to win", hits)
	}
}

func TestCrossSourceOverwriteNeverPanics(t *testing.T) {
	var hits []string
	r := New()
	r.Register("alpha", []string{"cmd"}, nil, named("alpha", &hits))
	// Last write wins; conflict is a warning, never an error.
	r.Register("beta", []string{"cmd"}, nil, named("beta", &hits))

	h := r.Resolve("cmd", event.KindGroupMessage)
	h(context.Background(), nil)
	if len(hits) != 1 || hits[0] != "beta" {
		t.Errorf("hits = %v, want beta to have replaced alpha", hits)
	}
}

func TestResolveKindFilter(t *testing.T) {
	var hits []string
	r := New()
	r.Register("plug", []string{"groupcmd"}, []event.Kind{event.KindGroupMessage}, named("g", &hits))
	r.Register("plug", []string{"chancmd"}, []event.Kind{event.KindGuildMessage, event.KindDirectMessage}, named("c", &hits))

	tests := []struct {
		token string
		kind  event.Kind
		want  bool
	}{
		{"groupcmd", event.KindGroupMessage, true},
		{"groupcmd", event.KindPrivateMessage, false},
		{"chancmd", event.KindGuildMessage, true},
		{"chancmd", event.KindDirectMessage, true},
		{"chancmd", event.KindGroupMessage, false},
	}
	for _, tt := range tests {
		got := r.Resolve(tt.token, tt.kind) != nil
		if got != tt.want {
			t.Errorf("Resolve(%q, %v) found=%v, want %v", tt.token, tt.kind, got, tt.want)
		}
	}
}

func TestRemoveSource(t *testing.T) {
	var hits []string
	r := New()
	r.Register("plug", []string{"a", "b"}, nil, named("x", &hits))
	r.Register("other", []string{"c"}, nil, named("y", &hits))
	r.RegisterLifecycle("plug", named("lc", &hits))

	if n := r.RemoveSource("plug"); n != 2 {
		t.Errorf("RemoveSource removed %d, want 2", n)
	}
	if r.Resolve("a", event.KindGroupMessage) != nil {
		t.Error("removed command still resolves")
	}
	if r.Resolve("c", event.KindGroupMessage) == nil {
		t.Error("unrelated command removed")
	}
	if r.ResolveLifecycle() != nil {
		t.Error("lifecycle handler should be gone with its source")
	}
}
