package msgport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msgport.yaml")
	contents := "name: worker-1\njob_queue_size: 512\nidle_ttl: 30s\nlog_level: debug\nadmin_addr: \"127.0.0.1:9090\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.Name != "worker-1" {
		t.Errorf("Name = %q, want worker-1", cfg.Name)
	}
	if cfg.JobQueueSize != 512 {
		t.Errorf("JobQueueSize = %d, want 512", cfg.JobQueueSize)
	}
	if cfg.IdleTTL != 30*time.Second {
		t.Errorf("IdleTTL = %v, want 30s", cfg.IdleTTL)
	}
	if cfg.AdminAddr != "127.0.0.1:9090" {
		t.Errorf("AdminAddr = %q, want 127.0.0.1:9090", cfg.AdminAddr)
	}
	if got := cfg.LogLevelValue(); got.String() != "DEBUG" {
		t.Errorf("LogLevelValue = %v, want DEBUG", got)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/msgport.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFileConfig_Options(t *testing.T) {
	cfg := &FileConfig{JobQueueSize: 128, IdleTTL: time.Minute}
	opts := cfg.Options()
	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}

	env := NewEnvironment("cfg-test", opts...)
	defer env.Stop()

	if env.cfg.jobQueueSize != 128 {
		t.Errorf("jobQueueSize = %d, want 128", env.cfg.jobQueueSize)
	}
	if env.cfg.idleTTL != time.Minute {
		t.Errorf("idleTTL = %v, want 1m", env.cfg.idleTTL)
	}
}
