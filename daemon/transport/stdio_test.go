package transport

import (
	"reflect"
	"testing"

	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

func TestStdio_CommandLine(t *testing.T) {
	s := NewStdio(mcphub.BackendConfig{
		Command: "npx -y @foo/bar --flag",
		Args:    []string{"--extra"},
	}, nil)

	exe, args, err := s.commandLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exe != "npx" {
		t.Fatalf("exe = %q, want npx", exe)
	}
	want := []string{"-y", "@foo/bar", "--flag", "--extra"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
}

func TestStdio_CommandLine_Empty(t *testing.T) {
	s := NewStdio(mcphub.BackendConfig{Command: "   "}, nil)
	if _, _, err := s.commandLine(); err == nil {
		t.Fatal("expected error for empty command")
	}
}
