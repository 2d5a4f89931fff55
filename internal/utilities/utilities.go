package utilities

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var lineBreaks = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// AuditLog appends raw SMS traffic to one file per prefix and day:
// <Dir>/<prefix>_<yyyymmdd>.log. An empty Dir disables it.
type AuditLog struct {
	Dir string

	mu  sync.Mutex
	now func() time.Time
}

func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{Dir: dir, now: time.Now}
}

// Write appends one line. Line breaks inside message are escaped so every
// entry stays on a single line.
func (a *AuditLog) Write(prefix, message string) error {
	if a == nil || a.Dir == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("audit dir: %w", err)
	}
	filename := filepath.Join(a.Dir, prefix+"_"+now.Format("20060102")+".log")

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit open %s: %w", filename, err)
	}
	defer f.Close()

	logLine := now.Format("15:04:05") + " - " + lineBreaks.Replace(message) + "\n"
	if _, err := f.WriteString(logLine); err != nil {
		return fmt.Errorf("audit write %s: %w", filename, err)
	}
	return nil
}
