package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	for _, k := range []string{
		"MESH_LISTEN_ADDR", "MESH_METRICS_ADDR", "MESH_DATA_DIR",
		"MESH_LOG_LEVEL", "MESH_HISTORY_BATCH_SIZE", "MESH_FORWARD_BUFFER_SIZE",
		"MESH_DIAL_TIMEOUT", "MESH_PEERS",
	} {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != "0.0.0.0:5000" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.HistoryBatchSize != 1000 {
		t.Fatalf("HistoryBatchSize = %d, want 1000", cfg.HistoryBatchSize)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Fatalf("DialTimeout = %v, want 10s", cfg.DialTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestLoadReadsOverridesAndParsesPeerList(t *testing.T) {
	t.Setenv("MESH_LISTEN_ADDR", "10.0.0.1:6000")
	t.Setenv("MESH_HISTORY_BATCH_SIZE", "250")
	t.Setenv("MESH_PEERS", "tcp://a.example:5000/chain-a, tcp://b.example:5000/chain-b")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != "10.0.0.1:6000" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.HistoryBatchSize != 250 {
		t.Fatalf("HistoryBatchSize = %d, want 250", cfg.HistoryBatchSize)
	}
	if len(cfg.AttestationPeers) != 2 {
		t.Fatalf("AttestationPeers = %v, want 2 entries", cfg.AttestationPeers)
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := &Config{ListenAddr: "x", DataDir: "", HistoryBatchSize: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an empty DataDir")
	}
}
