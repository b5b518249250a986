package main

import "testing"

func TestBuildRootCmdHasFlags(t *testing.T) {
	cmd := buildRootCmd()

	for _, name := range []string{"config", "workspace-root"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected --%s flag to be registered", name)
		}
	}
}

func TestBuildRootCmdUse(t *testing.T) {
	cmd := buildRootCmd()
	if cmd.Use != "worker" {
		t.Fatalf("expected Use %q, got %q", "worker", cmd.Use)
	}
}
