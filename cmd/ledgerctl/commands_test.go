package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finmate/internal/auth"

	"github.com/google/subcommands"
)

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return c.Execute(context.Background(), fs)
}

func TestProjectCmd(t *testing.T) {
	var out bytes.Buffer
	status := run(t, &projectCmd{out: &out}, "-initial", "1000", "-monthly", "100", "-rate", "12", "-years", "1")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v", status)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "2408") || !strings.Contains(lines[2], "208") {
		t.Errorf("unexpected year 1 row %q", lines[2])
	}
}

func TestProjectCmdRejectsNegativeInput(t *testing.T) {
	var out bytes.Buffer
	if status := run(t, &projectCmd{out: &out}, "-years", "-1"); status != subcommands.ExitUsageError {
		t.Fatalf("status = %v, want usage error", status)
	}
}

func TestSummaryAndRolloverCmds(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("SQLITE_DB_PATH", t.TempDir()+"/ledger.db")

	var out bytes.Buffer
	if status := run(t, &summaryCmd{out: &out}, "-owner", "u1", "-period", "2025-02"); status != subcommands.ExitSuccess {
		t.Fatalf("summary status = %v", status)
	}
	if !strings.Contains(out.String(), "2025-02") {
		t.Errorf("summary output missing period:\n%s", out.String())
	}

	out.Reset()
	if status := run(t, &rolloverCmd{out: &out}, "-date", "2025-02-14"); status != subcommands.ExitSuccess {
		t.Fatalf("rollover status = %v", status)
	}
	if !strings.Contains(out.String(), "owners=0 created=0 failed=0") {
		t.Errorf("unexpected rollover output %q", out.String())
	}

	if status := run(t, &summaryCmd{out: &out}); status != subcommands.ExitUsageError {
		t.Fatalf("missing owner: status = %v", status)
	}
}

func TestTokenCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := &tokenCmd{out: &out, secret: "s3cret"}
	if status := run(t, cmd, "-owner", "u1", "-ttl", "1h"); status != subcommands.ExitSuccess {
		t.Fatalf("status = %v", status)
	}

	verifier, err := auth.NewJWT("s3cret")
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	token := strings.TrimSpace(out.String())
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	owner, err := verifier.OwnerID(req)
	if err != nil || owner != "u1" {
		t.Fatalf("OwnerID = %q, %v", owner, err)
	}

	if status := run(t, &tokenCmd{out: &out, secret: "x"}, "-ttl", time.Hour.String()); status != subcommands.ExitUsageError {
		t.Fatalf("missing owner: status = %v", status)
	}
}
