package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := validate(cfg); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PersistQueues["broken"] = QueueConfig{PersisterClass: "TSDBPersister", Workers: 0}
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for workers=0, got nil")
	}
}

func TestValidateRejectsMissingPersisterClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PersistQueues["broken"] = QueueConfig{Workers: 1}
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for empty persister_class, got nil")
	}
}

func TestValidateRejectsEmptyEspersistdURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EspersistdURI = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for empty espersistd_uri, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/espersistd.yaml"); err == nil {
		t.Fatal("expected error loading a nonexistent config file, got nil")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.TSDBRoot != DefaultConfig().TSDBRoot {
		t.Errorf("TSDBRoot = %q, want default", cfg.TSDBRoot)
	}
}
