package control

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"consolefwd/pkg/config"
	"consolefwd/pkg/engine"
	"consolefwd/pkg/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeUpdater struct {
	chains []*engine.ProcessorChain
}

func (f *fakeUpdater) UpdateChain(chain *engine.ProcessorChain) {
	f.chains = append(f.chains, chain)
}

func record(level model.Level, target, msg string) model.Record {
	return model.Record{Metadata: model.Metadata{Level: level, Target: target}, Message: msg}
}

func TestBuildChain(t *testing.T) {
	rules := []config.ProcessorRule{
		{ID: "drop_health", Type: "filter", Params: map[string]string{"value": "healthz"}},
		{ID: "mask", Type: "redact", Params: map[string]string{"pattern": `token=\w+`, "replacement": "token=***", "regex": "true"}},
		{ID: "no_hyper", Type: "attribute_filter", Params: map[string]string{"attribute": "target", "operator": "contains", "value": "hyper"}},
		{Type: "level", Params: map[string]string{"max": "debug"}},

		// Invalid rules are skipped.
		{ID: "empty_filter", Type: "filter"},
		{ID: "bad_regex", Type: "redact", Params: map[string]string{"pattern": "(", "replacement": "", "regex": "true"}},
		{ID: "bad_attr", Type: "attribute_filter", Params: map[string]string{"value": "x"}},
		{ID: "bad_level", Type: "level", Params: map[string]string{"max": "loud"}},
		{ID: "mystery", Type: "sample"},
	}

	chain := BuildChain(rules, discard)
	names := chain.Names()
	want := []string{"drop_health", "mask", "no_hyper", "level"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("processor %d = %q, want %q", i, names[i], want[i])
		}
	}

	tests := []struct {
		name     string
		in       model.Record
		wantDrop bool
		wantMsg  string
	}{
		{name: "health check", in: record(model.LevelInfo, "mirrord", "GET /healthz"), wantDrop: true},
		{name: "token masked", in: record(model.LevelInfo, "mirrord", "auth token=abc123 ok"), wantMsg: "auth token=*** ok"},
		{name: "hyper target", in: record(model.LevelInfo, "mirrord::hyper", "x"), wantDrop: true},
		{name: "trace dropped", in: record(model.LevelTrace, "mirrord", "x"), wantDrop: true},
		{name: "kept", in: record(model.LevelDebug, "mirrord", "kept"), wantMsg: "kept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, drop, err := chain.Process(engine.NewProcessingContext(context.Background()), tt.in)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if drop != tt.wantDrop {
				t.Fatalf("drop = %v, want %v", drop, tt.wantDrop)
			}
			if !drop && out.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", out.Message, tt.wantMsg)
			}
		})
	}
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{"version":"3","processors":[{"id":"f","type":"filter","params":{"value":"x"}}]}`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Version != "3" || len(m.Processors) != 1 || m.Processors[0].Params["value"] != "x" {
		t.Errorf("unexpected manifest %+v", m)
	}
	if _, err := ParseManifest([]byte(`{"version":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestWatcher_ApplySkipsSameVersion(t *testing.T) {
	up := &fakeUpdater{}
	w := NewWatcher(config.DefaultConfig().Redis, up, discard)
	defer w.Close()

	m := &Manifest{Version: "1", Processors: []config.ProcessorRule{{ID: "f", Type: "filter", Params: map[string]string{"value": "x"}}}}
	w.Apply(m)
	w.Apply(m)
	if len(up.chains) != 1 {
		t.Fatalf("expected one update for a repeated version, got %d", len(up.chains))
	}

	w.Apply(&Manifest{Version: "2"})
	if len(up.chains) != 2 || up.chains[1].Len() != 0 {
		t.Errorf("expected an empty chain for version 2, got %d updates", len(up.chains))
	}

	// Unversioned manifests always apply.
	w.Apply(&Manifest{})
	w.Apply(&Manifest{})
	if len(up.chains) != 4 {
		t.Errorf("expected 4 updates, got %d", len(up.chains))
	}
}

func TestWatcher_ReloadUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.DefaultConfig().Redis
	cfg.Address = addr
	up := &fakeUpdater{}
	w := NewWatcher(cfg, up, discard)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Reload(ctx); err == nil {
		t.Fatal("expected error from unreachable redis")
	}
	if len(up.chains) != 0 {
		t.Error("chain swapped despite failed reload")
	}
}
