package secrets

import (
	"path/filepath"
	"testing"
)

func TestSetAndValueRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "secrets.json"))

	if v, ok := s.Value("API_KEY"); ok {
		t.Fatalf("expected unset secret, got %q", v)
	}
	if err := s.Set("API_KEY", "shh"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := s.Value("API_KEY")
	if !ok || v != "shh" {
		t.Fatalf("Value = %q, %v; want shh, true", v, ok)
	}
	if !s.IsConfigured("API_KEY") {
		t.Error("expected IsConfigured true after Set")
	}
}

func TestDeleteRemovesValue(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "secrets.json"))
	if err := s.Set("TOKEN", "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("TOKEN"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.IsConfigured("TOKEN") {
		t.Error("expected TOKEN unconfigured after Delete")
	}
}

func TestValueFallsBackToEnv(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "secrets.json"))
	t.Setenv("RUDI_TEST_SECRET", "from-env")

	v, ok := s.Value("RUDI_TEST_SECRET")
	if !ok || v != "from-env" {
		t.Fatalf("Value = %q, %v; want from-env, true", v, ok)
	}
}

func TestFileValueTakesPrecedenceOverEnv(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "secrets.json"))
	t.Setenv("RUDI_TEST_SECRET", "from-env")
	if err := s.Set("RUDI_TEST_SECRET", "from-file"); err != nil {
		t.Fatal(err)
	}

	v, ok := s.Value("RUDI_TEST_SECRET")
	if !ok || v != "from-file" {
		t.Fatalf("Value = %q, %v; want from-file, true", v, ok)
	}
}
