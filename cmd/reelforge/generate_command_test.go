package main

import (
	"encoding/json"
	"strings"
	"testing"

	"reelforge/internal/api"
	"reelforge/internal/testsupport"
)

func TestGenerateAudioMode(t *testing.T) {
	upstream := upstreamStub(t)
	_, configPath := newCLIConfig(t, testsupport.WithBaseURLs(upstream.URL))

	out, _, err := runCLI(t, configPath, "generate", "--theme", "freins", "--mode", "audio", "--json")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	var resp api.GenerateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !resp.OK || resp.RunID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Narration != "Les freins chauffent vite." {
		t.Fatalf("narration = %q", resp.Narration)
	}
	if resp.Audio == "" || resp.Video != "" {
		t.Fatalf("expected audio only, got %+v", resp)
	}

	out, _, err = runCLI(t, configPath, "runs", "show", resp.RunID)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "completed")
}

func TestGenerateReportsFailure(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.WithBaseURLs("http://127.0.0.1:1"))

	out, _, err := runCLI(t, configPath, "generate", "--mode", "audio")
	if err == nil {
		t.Fatal("expected unreachable script provider to fail")
	}
	requireContains(t, out, "Failed at: script")
}

func TestGenerateRejectsUnknownMode(t *testing.T) {
	_, configPath := newCLIConfig(t)
	_, _, err := runCLI(t, configPath, "generate", "--mode", "sideways")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}
