package audit

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/cartable/dbopen"
	"github.com/hazyhaar/cartable/kit"
	_ "modernc.org/sqlite"
)

func setupLogger(t *testing.T) *SQLiteLogger {
	t.Helper()
	db := dbopen.OpenMemory(t)
	l := NewSQLiteLogger(db)
	if err := l.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestInit_CreatesTable(t *testing.T) {
	// WHAT: Init creates the audit_log table.
	// WHY: RecordInvocation drops entries silently if the schema is missing.
	db := dbopen.OpenMemory(t)
	l := NewSQLiteLogger(db)
	if err := l.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&count)
	if count != 1 {
		t.Fatal("audit_log table not created")
	}
}

func TestRecordInvocation_RoundTrip(t *testing.T) {
	// WHAT: A recorded invocation comes back from Recent with its fields intact.
	l := setupLogger(t)
	ctx := kit.WithRequestID(context.Background(), "req-1")

	l.RecordInvocation(ctx, "campus_login", true, "")
	l.RecordInvocation(ctx, "campus_submit_form", false, "Dialog dismissed: unexpected message")

	entries, err := l.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.EntryID == "" {
			t.Fatal("entry_id not generated")
		}
		if e.RequestID != "req-1" {
			t.Fatalf("request_id: got %q", e.RequestID)
		}
		if e.Transport != "mcp" {
			t.Fatalf("transport: got %q", e.Transport)
		}
	}
}

func TestRecent_ToolFilter(t *testing.T) {
	// WHAT: Recent with a tool name returns only that tool's entries.
	l := setupLogger(t)
	ctx := context.Background()

	l.RecordInvocation(ctx, "campus_login", true, "")
	l.RecordInvocation(ctx, "campus_snapshot", true, "")
	l.RecordInvocation(ctx, "campus_login", false, "timeout")

	entries, err := l.Recent(ctx, "campus_login", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 campus_login entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Tool != "campus_login" {
			t.Fatalf("filter leaked tool %q", e.Tool)
		}
	}
}

func TestRecordInvocation_FailureDetail(t *testing.T) {
	// WHAT: Failed invocations persist success=false and the detail text.
	// WHY: The detail is the only forensic record of what went wrong on-page.
	l := setupLogger(t)
	ctx := context.Background()

	l.RecordInvocation(ctx, "campus_submit_form", false, "Failed to click element with reference e9")

	entries, err := l.Recent(ctx, "campus_submit_form", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(e.Detail, "reference e9") {
		t.Fatalf("detail lost: %q", e.Detail)
	}
}

func TestWithIDGenerator(t *testing.T) {
	// WHAT: A custom generator controls entry IDs.
	db := dbopen.OpenMemory(t)
	n := 0
	l := NewSQLiteLogger(db, WithIDGenerator(func() string {
		n++
		return "fixed-id"
	}))
	if err := l.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	l.RecordInvocation(context.Background(), "campus_login", true, "")
	entries, err := l.Recent(context.Background(), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].EntryID != "fixed-id" {
		t.Fatalf("custom generator not used: %+v", entries)
	}
}
