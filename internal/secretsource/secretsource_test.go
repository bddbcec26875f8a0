package secretsource

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestGitConfigSecretKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "[remote \"origin\"]\n\turl = xcrypt::/srv/repo\n\txcrypt-secret-key = psw:correct-horse\n" +
		"[remote \"other\"]\n\turl = https://example.com/repo\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewGitConfig(path)

	got, err := cfg.SecretKey("origin")
	if err != nil {
		t.Fatalf("SecretKey(origin): %v", err)
	}
	if got != "psw:correct-horse" {
		t.Errorf("got %q, want %q", got, "psw:correct-horse")
	}

	if _, err := cfg.SecretKey("other"); err == nil {
		t.Fatal("expected error for remote without xcrypt-secret-key set")
	}
	if _, err := cfg.SecretKey("nonexistent"); err == nil {
		t.Fatal("expected error for unknown remote")
	}
}

func TestGitConfigMissingFile(t *testing.T) {
	cfg := NewGitConfig(filepath.Join(t.TempDir(), "absent-config"))
	if _, err := cfg.SecretKey("origin"); err == nil {
		t.Fatal("expected error reading a nonexistent config file")
	}
}

func TestResolvePassesThroughUnrecognizedForms(t *testing.T) {
	tests := []string{
		"psw:plain-secret",
		"",
		"not-a-reference-at-all",
	}
	for _, raw := range tests {
		got, err := Resolve(raw)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error %v", raw, err)
		}
		if got != raw {
			t.Errorf("Resolve(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestResolveAWSKMSRejectsMalformedReference(t *testing.T) {
	tests := []string{
		"awskms:missing-colon",
		"awskms:key-id:not-base64!!",
	}
	for _, raw := range tests {
		if _, err := Resolve(raw); err == nil {
			t.Errorf("Resolve(%q): expected error", raw)
		}
	}
}

func TestParseAzureKVRef(t *testing.T) {
	wrapped := base64.StdEncoding.EncodeToString([]byte("wrapped-bytes"))

	tests := []struct {
		name      string
		ref       string
		wantVault string
		wantKey   string
		wantVer   string
		wantErr   bool
	}{
		{
			name:      "with version",
			ref:       "https://myvault.vault.azure.net/mykey/v1:" + wrapped,
			wantVault: "https://myvault.vault.azure.net",
			wantKey:   "mykey",
			wantVer:   "v1",
		},
		{
			name:      "without version",
			ref:       "https://myvault.vault.azure.net/mykey:" + wrapped,
			wantVault: "https://myvault.vault.azure.net",
			wantKey:   "mykey",
		},
		{name: "missing wrapped segment", ref: "https://myvault.vault.azure.net/mykey", wantErr: true},
		{name: "wrong host", ref: "https://example.com/mykey:" + wrapped, wantErr: true},
		{name: "bad base64", ref: "https://myvault.vault.azure.net/mykey:not-base64!!", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault, key, ver, w, err := parseAzureKVRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if vault != tt.wantVault || key != tt.wantKey || ver != tt.wantVer {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", vault, key, ver, tt.wantVault, tt.wantKey, tt.wantVer)
			}
			if string(w) != "wrapped-bytes" {
				t.Errorf("wrapped = %q, want %q", w, "wrapped-bytes")
			}
		})
	}
}
