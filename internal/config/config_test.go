package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{Provider: "groq"},
	}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		want bool // true = should warn
	}{
		{"zero", 0, false},
		{"normal", 0.7, false},
		{"max", 2.0, false},
		{"negative", -1, true},
		{"too_high", 3.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLM: LLMConfig{Temperature: tt.temp}}
			warnings := cfg.Validate()
			hasWarn := false
			for _, w := range warnings {
				if strings.Contains(w, "temperature") {
					hasWarn = true
				}
			}
			if hasWarn != tt.want {
				t.Errorf("temperature=%.1f: hasWarn=%v, want=%v", tt.temp, hasWarn, tt.want)
			}
		})
	}
}

func TestValidate_UnknownVectorBackend(t *testing.T) {
	cfg := &Config{Vector: VectorConfig{Backend: "faiss"}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "vector backend") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about unknown vector backend")
	}
}

func TestValidate_OverlapExceedsSize(t *testing.T) {
	cfg := &Config{Chunker: ChunkerConfig{Size: 100, Overlap: 100}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "overlap") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about overlap >= size")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("Provider = %q, want groq", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "llama3-8b-8192" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Chunker.Size != 1000 || cfg.Chunker.Overlap != 200 {
		t.Errorf("Chunker = %+v, want 1000/200", cfg.Chunker)
	}
	if cfg.Summarizer.ChunkCap != 12 {
		t.Errorf("ChunkCap = %d, want 12", cfg.Summarizer.ChunkCap)
	}
	if cfg.Vector.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Vector.Backend)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doclens.yaml")
	content := "llm:\n  model: llama3-70b-8192\nchunker:\n  size: 500\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Model != "llama3-70b-8192" {
		t.Errorf("Model = %q, want file override", cfg.LLM.Model)
	}
	if cfg.Chunker.Size != 500 {
		t.Errorf("Size = %d, want 500", cfg.Chunker.Size)
	}
	if cfg.Chunker.Overlap != 200 {
		t.Errorf("Overlap = %d, want default 200", cfg.Chunker.Overlap)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCLENS_LLM_MODEL", "llama-3.1-8b-instant")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Errorf("Model = %q, want env override", cfg.LLM.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}
