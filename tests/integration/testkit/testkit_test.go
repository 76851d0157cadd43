package testkit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/store"
)

// recordingService logs its lifecycle calls into a shared journal.
type recordingService struct {
	name    string
	props   map[string]any
	stopErr error
	journal *[]string
}

func (r *recordingService) Start() (map[string]any, error) {
	*r.journal = append(*r.journal, "start "+r.name)
	return r.props, nil
}

func (r *recordingService) Stop() error {
	*r.journal = append(*r.journal, "stop "+r.name)
	return r.stopErr
}

func (r *recordingService) GetName() string {
	return r.name
}

func TestTestEnv_Lifecycle(t *testing.T) {
	var journal []string
	storage := &recordingService{name: "store", props: map[string]any{PropDataDir: "/data"}, stopErr: errors.New("flush failed"), journal: &journal}
	server := &recordingService{name: "server", props: map[string]any{PropBaseURL: "http://localhost:1"}, journal: &journal}
	env := NewTestEnv(storage, server)

	props, err := env.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if props[PropDataDir] != "/data" || props[PropBaseURL] != "http://localhost:1" {
		t.Errorf("properties not merged: %v", props)
	}
	if v, ok := env.GetContext().GetProperty(PropBaseURL); !ok || v != "http://localhost:1" {
		t.Errorf("GetProperty(%s) = %v, %v", PropBaseURL, v, ok)
	}

	if err := env.Stop(); err == nil || err.Error() != "flush failed" {
		t.Errorf("expected the store's stop error, got %v", err)
	}
	want := "start store,start server,stop server,stop store"
	if got := strings.Join(journal, ","); got != want {
		t.Errorf("lifecycle = %s, want %s", got, want)
	}
}

func TestNewTestFlags(t *testing.T) {
	tests := []struct {
		name  string
		opts  *FlagOptions
		check func(t *testing.T, get func(string) string)
	}{
		{
			name: "defaults serve http without auth or OCR",
			opts: nil,
			check: func(t *testing.T, get func(string) string) {
				if get("transport") != "http" || get("auth-type") != "none" || get("host") != "localhost" {
					t.Errorf("unexpected transport/auth/host: %s %s %s", get("transport"), get("auth-type"), get("host"))
				}
				if get("ocr") != "false" {
					t.Errorf("OCR should be disabled, got %s", get("ocr"))
				}
				if get("data-dir") == "" || get("port") == "0" {
					t.Errorf("expected an assigned data dir and port, got %q and %s", get("data-dir"), get("port"))
				}
				if get("workers") != "0" {
					t.Errorf("workers should keep the configured default, got %s", get("workers"))
				}
			},
		},
		{
			name: "explicit options",
			opts: &FlagOptions{Port: 9999, Transport: "stdio", Host: "127.0.0.1", DataDir: "/srv/docchat", Workers: 3},
			check: func(t *testing.T, get func(string) string) {
				if get("port") != "9999" || get("transport") != "stdio" || get("host") != "127.0.0.1" {
					t.Errorf("unexpected port/transport/host: %s %s %s", get("port"), get("transport"), get("host"))
				}
				if get("data-dir") != "/srv/docchat" || get("workers") != "3" {
					t.Errorf("unexpected data dir/workers: %s %s", get("data-dir"), get("workers"))
				}
			},
		},
		{
			name: "api keys imply apikey auth",
			opts: &FlagOptions{APIKeys: []string{"k1", "k2"}},
			check: func(t *testing.T, get func(string) string) {
				if get("auth-type") != "apikey" || get("auth-api-keys") != "[k1,k2]" {
					t.Errorf("unexpected auth: %s %s", get("auth-type"), get("auth-api-keys"))
				}
			},
		},
		{
			name: "explicit auth type wins over api keys",
			opts: &FlagOptions{AuthType: "basic", APIKeys: []string{"k1"}},
			check: func(t *testing.T, get func(string) string) {
				if get("auth-type") != "basic" {
					t.Errorf("expected basic auth, got %s", get("auth-type"))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := NewTestFlags(t, tt.opts)
			tt.check(t, func(name string) string {
				f := flags.Lookup(name)
				if f == nil {
					t.Fatalf("flag %s not registered", name)
				}
				return f.Value.String()
			})
		})
	}
}

func TestNewTestFlags_DistinctDataDirs(t *testing.T) {
	a, _ := NewTestFlags(t, nil).GetString("data-dir")
	b, _ := NewTestFlags(t, nil).GetString("data-dir")
	if a == b {
		t.Errorf("each flag set should get its own data dir, both got %s", a)
	}
}

func TestServerService_Lifecycle(t *testing.T) {
	dataDir := t.TempDir()
	svc := NewServerService(NewTestFlags(t, &FlagOptions{DataDir: dataDir, Workers: 1}))
	if svc.GetName() != "docchat-server" {
		t.Errorf("unexpected name %q", svc.GetName())
	}

	props, err := svc.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if props[PropDataDir] != dataDir {
		t.Errorf("data dir property = %v, want %s", props[PropDataDir], dataDir)
	}

	resp, err := http.Get(fmt.Sprint(props[PropBaseURL]) + "/api/projects")
	if err != nil {
		t.Fatalf("GET /api/projects failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from a running server, got %d", resp.StatusCode)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}

	// The data dir is released once Stop returns.
	st, err := store.Open(store.Options{DataDir: dataDir})
	if err != nil {
		t.Fatalf("data dir still locked after Stop: %v", err)
	}
	_ = st.Close()
}

func TestServerService_StartFailsWhenDataDirLocked(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.Open(store.Options{DataDir: dataDir})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	svc := NewServerService(NewTestFlags(t, &FlagOptions{DataDir: dataDir}))
	if _, err := svc.Start(); err == nil || !strings.Contains(err.Error(), "exited during startup") {
		_ = svc.Stop()
		t.Fatalf("expected a startup failure, got %v", err)
	}
}

func TestMustGetFreePort(t *testing.T) {
	if port := MustGetFreePort(t); port <= 0 {
		t.Errorf("expected a positive port, got %d", port)
	}
	if _, err := getFreePortWithAddr("invalid:address:format"); err == nil {
		t.Error("expected error for invalid address")
	}
}
