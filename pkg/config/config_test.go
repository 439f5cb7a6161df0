package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("JOTTER_TEST_NAME", "from-env")
	p := writeFile(t, "name: ${JOTTER_TEST_NAME}\n")

	s := sample{Port: 8080}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "from-env" || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "port: -1\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, "port: [\n")
	s := sample{Port: 1}
	if err := Load(p, &s); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s)
	if err != nil || found {
		t.Fatalf("missing file: found=%v err=%v", found, err)
	}

	s = sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s); err == nil {
		t.Error("defaults must still be validated")
	}

	p := writeFile(t, "port: 9\n")
	found, err = LoadOptional(p, &s)
	if err != nil || !found || s.Port != 9 {
		t.Errorf("existing file: found=%v err=%v s=%+v", found, err, s)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("JOTTER_SET", "x")
	t.Setenv("JOTTER_EMPTY", "")

	cases := map[string]string{
		"${JOTTER_SET}":            "x",
		"$JOTTER_SET/y":            "x/y",
		"${JOTTER_UNSET_VAR}":      "",
		"${JOTTER_UNSET_VAR:-def}": "def",
		"${JOTTER_EMPTY:-def}":     "def",
		"${JOTTER_SET:-def}":       "x",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
