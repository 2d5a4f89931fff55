package utilities

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAuditLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	a := NewAuditLog(dir)
	a.now = func() time.Time { return time.Date(2022, 12, 3, 14, 25, 42, 0, time.UTC) }

	if err := a.Write("sms_in", "+361 location"); err != nil {
		t.Fatal(err)
	}
	if err := a.Write("sms_in", "+362 two\nlines"); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "sms_in_20221203.log"))
	if err != nil {
		t.Fatal(err)
	}
	want := "14:25:42 - +361 location\n14:25:42 - +362 two\\nlines\n"
	if string(b) != want {
		t.Errorf("got %q, want %q", b, want)
	}
}

func TestAuditLogDisabled(t *testing.T) {
	var nilLog *AuditLog
	if err := nilLog.Write("x", "y"); err != nil {
		t.Errorf("nil log: %v", err)
	}
	if err := NewAuditLog("").Write("x", "y"); err != nil {
		t.Errorf("empty dir: %v", err)
	}
}
