package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/nats-io/nats-server/v2/test"

	"reelforge/internal/config"
	"reelforge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckAPIKey(t *testing.T) {
	if CheckAPIKey("Voice API key", "  ").Passed {
		t.Fatal("expected blank key to fail")
	}
	if !CheckAPIKey("Voice API key", "sk-123").Passed {
		t.Fatal("expected key to pass")
	}
}

func modelServer(t *testing.T, wantKey string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/models/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gpt-4o-mini","object":"model","owned_by":"openai"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckScript_OK(t *testing.T) {
	srv := modelServer(t, "test-script-key")
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURLs(srv.URL))

	result := CheckScript(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckScript_BadKey(t *testing.T) {
	srv := modelServer(t, "another-key")
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURLs(srv.URL))

	result := CheckScript(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for rejected key")
	}
	if result.Detail == "" {
		t.Fatal("expected failure detail")
	}
}

func TestCheckScript_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Script.APIKey = ""
	if CheckScript(context.Background(), cfg).Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckNATS(t *testing.T) {
	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	result := CheckNATS(context.Background(), natsServer.ClientURL())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	if CheckNATS(context.Background(), "").Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestCheckRenderBinaries(t *testing.T) {
	t.Setenv("PATH", "")
	cfg := testsupport.NewConfig(t, testsupport.WithLocalRenderer("clearly-not-present-renderer"))
	results := CheckRenderBinaries(cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Passed {
		t.Fatal("expected missing render command to fail")
	}
	if !results[1].Passed || !strings.Contains(results[1].Detail, "optional") {
		t.Fatalf("expected optional ffmpeg to pass with detail, got %+v", results[1])
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_HostedConfig(t *testing.T) {
	srv := modelServer(t, "test-script-key")
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURLs(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// data, log, artifact dirs + three keys + script probe
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d: %+v", len(results), results)
	}
	if !AllPassed(results) {
		t.Fatalf("expected every check to pass: %+v", results)
	}
}

func TestRunAll_SkipsScriptProbeWithoutKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Script.APIKey = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	for _, r := range results {
		if strings.HasPrefix(r.Name, "Script provider") {
			t.Fatal("script probe should be skipped without a key")
		}
	}
	if AllPassed(results) {
		t.Fatal("expected the missing key to fail")
	}
}

func TestProbeDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if probe := ProbeDaemon(cfg); probe.Running {
		t.Fatal("expected no daemon before the lock exists")
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "reelforge.pid"), []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := ProbeDaemon(cfg)
	if !probe.Running || probe.PID != 4242 {
		t.Fatalf("unexpected probe %+v", probe)
	}
	if probe.Detail() != "running (pid 4242)" {
		t.Fatalf("Detail = %q", probe.Detail())
	}
}

func TestProbeDaemonNilConfig(t *testing.T) {
	var cfg *config.Config
	if probe := ProbeDaemon(cfg); probe.Running || probe.Detail() != "not running" {
		t.Fatalf("unexpected probe %+v", probe)
	}
}
