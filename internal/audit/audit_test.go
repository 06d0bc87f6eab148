package audit

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_RedisURL(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("REDIS_URL", "redis://:hunter2@cache:6379/0"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
}

func TestAuditKeys_SecretsAgree(t *testing.T) {
	t.Parallel()
	for _, e := range auditKeys {
		if e.secret != secretEnvKeys[e.key] {
			t.Errorf("%s: auditKeys secret=%v, secretEnvKeys=%v", e.key, e.secret, secretEnvKeys[e.key])
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("RAGPDF_API_KEY", "super-secret-token")
	t.Setenv("QDRANT_COLLECTION", "pdfs")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(log, "serve", "", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	if !strings.Contains(out, `"RAGPDF_API_KEY":"set"`) {
		t.Errorf("expected RAGPDF_API_KEY presence, got %s", out)
	}
	if !strings.Contains(out, `"QDRANT_COLLECTION":"pdfs"`) {
		t.Errorf("expected QDRANT_COLLECTION value, got %s", out)
	}
	if !strings.Contains(out, `"config_file":"none"`) {
		t.Errorf("expected config_file none, got %s", out)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.ragpdf/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.ragpdf/config.yaml" {
			t.Errorf("expected '~/.ragpdf/config.yaml', got %q", got)
		}
	}
}
