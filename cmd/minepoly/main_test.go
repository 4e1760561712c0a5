package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "minepoly dev\n") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestStageCommandsRequireYear(t *testing.T) {
	for _, name := range []string{"fetch", "chips", "predict"} {
		t.Run(name, func(t *testing.T) {
			root := newRootCommand()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{name})
			if err := root.Execute(); err == nil {
				t.Error("Expected error without --year")
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"chips", "--year", "2020", "--config", "/nonexistent/minepoly.yaml"})
	if err := root.Execute(); err == nil {
		t.Error("Expected error for a missing config file")
	}
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"fetch": false, "chips": false, "predict": false, "postprocess": false, "serve": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Command %s not registered", name)
		}
	}
}
