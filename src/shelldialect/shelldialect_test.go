package shelldialect

import (
	"strings"
	"testing"
)

func TestValid(t *testing.T) {
	for _, k := range []Kind{Bash, Zsh, Sh, Pwsh, Cmd} {
		if !k.Valid() {
			t.Fatalf("%q should be valid", k)
		}
	}
	if Kind("fish").Valid() {
		t.Fatalf("unknown dialect reported valid")
	}
}

func TestNewline(t *testing.T) {
	if Bash.Newline() != "\n" {
		t.Fatalf("bash newline should be \\n")
	}
	if Pwsh.Newline() != "\r\n" {
		t.Fatalf("pwsh newline should be \\r\\n")
	}
	if Cmd.Newline() != "\r\n" {
		t.Fatalf("cmd newline should be \\r\\n")
	}
}

func TestInvocationEmbedsCommandAndToken(t *testing.T) {
	inv := string(Bash.Invocation("ls -la", "abc123"))
	if !strings.Contains(inv, "abc123") {
		t.Fatalf("invocation missing token: %s", inv)
	}
	if !strings.Contains(inv, "ls -la") {
		t.Fatalf("invocation missing command: %s", inv)
	}

	cmdInv := string(Cmd.Invocation("dir", "tok9"))
	if !strings.Contains(cmdInv, "__SILC_BEGIN_tok9__") || !strings.Contains(cmdInv, "__SILC_END_tok9__") {
		t.Fatalf("cmd invocation missing sentinels: %s", cmdInv)
	}
}

func TestHelperInjectionNilForCmd(t *testing.T) {
	if Cmd.HelperInjection() != nil {
		t.Fatalf("cmd.exe should have no standing helper definition")
	}
	if Bash.HelperInjection() == nil {
		t.Fatalf("bash should define __silc_exec")
	}
}

func TestSentinelHelpers(t *testing.T) {
	if BeginSentinel("tok") != "__SILC_BEGIN_tok__" {
		t.Fatalf("unexpected begin sentinel: %s", BeginSentinel("tok"))
	}
	if EndSentinelPrefix("tok") != "__SILC_END_tok__:" {
		t.Fatalf("unexpected end sentinel prefix: %s", EndSentinelPrefix("tok"))
	}
}

func TestPowerShellQuotingEscapesSingleQuotes(t *testing.T) {
	inv := string(Pwsh.Invocation("echo 'hi'", "t1"))
	if !strings.Contains(inv, "''hi''") {
		t.Fatalf("expected doubled single quotes in pwsh invocation: %s", inv)
	}
}

func TestDefaultShellPaths(t *testing.T) {
	cases := map[Kind]string{
		Bash: "/bin/bash",
		Zsh:  "/bin/zsh",
		Sh:   "/bin/sh",
		Pwsh: "pwsh",
		Cmd:  "cmd.exe",
	}
	for k, want := range cases {
		if got := k.DefaultShellPath(); got != want {
			t.Fatalf("%s: got %q, want %q", k, got, want)
		}
	}
}
