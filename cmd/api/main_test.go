package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if cmd.Name() != name {
			t.Fatalf("expected %s, got %s", name, cmd.Name())
		}
	}
	migrate, _, _ := root.Find([]string{"migrate"})
	if migrate.Flags().Lookup("dry-run") == nil {
		t.Fatal("migrate is missing --dry-run")
	}
}

func TestServeRequiresAuthProvider(t *testing.T) {
	t.Setenv("AUTH_PROVIDER_URL", "")
	t.Setenv("MOJOCODE_CONFIG", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected serve to fail without AUTH_PROVIDER_URL")
	}
}

func TestServeRefusesDevSecretsKey(t *testing.T) {
	t.Setenv("AUTH_PROVIDER_URL", "https://auth.example")
	t.Setenv("SECRETS_KEY", "")
	t.Setenv("MOJOCODE_CONFIG", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "SECRETS_KEY") {
		t.Fatalf("expected SECRETS_KEY error, got %v", err)
	}
}
