package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %q, want gemini", cfg.LLMProvider)
	}
	if cfg.AnalysisTimeout != 60*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 60s", cfg.AnalysisTimeout)
	}
	if cfg.FreeScans != 3 {
		t.Errorf("FreeScans = %d, want 3", cfg.FreeScans)
	}
	if !cfg.DemoFallback {
		t.Error("DemoFallback should default to true")
	}
	if cfg.AMQPExchange != "purescan" {
		t.Errorf("AMQPExchange = %q, want purescan", cfg.AMQPExchange)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "stub")
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("FREE_SCANS", "10")
	t.Setenv("DEMO_FALLBACK", "false")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.LLMProvider != "stub" {
		t.Errorf("LLMProvider = %q, want stub", cfg.LLMProvider)
	}
	if cfg.AnalysisTimeout != 5*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 5s", cfg.AnalysisTimeout)
	}
	if cfg.FreeScans != 10 {
		t.Errorf("FreeScans = %d, want 10", cfg.FreeScans)
	}
	if cfg.DemoFallback {
		t.Error("DemoFallback should be false")
	}
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("ANALYSIS_TIMEOUT", "soon")
	t.Setenv("FREE_SCANS", "many")
	t.Setenv("DEMO_FALLBACK", "maybe")

	cfg := Load()

	if cfg.AnalysisTimeout != 60*time.Second {
		t.Errorf("AnalysisTimeout = %v, want default 60s", cfg.AnalysisTimeout)
	}
	if cfg.FreeScans != 3 {
		t.Errorf("FreeScans = %d, want default 3", cfg.FreeScans)
	}
	if !cfg.DemoFallback {
		t.Error("DemoFallback should fall back to true")
	}
}
