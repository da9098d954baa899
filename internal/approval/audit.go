package approval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/store"
)

const auditFileName = "approvals.audit.jsonl"

type AuditEntry struct {
	Timestamp   time.Time `json:"ts"`
	TraceID     string    `json:"trace_id,omitempty"`
	WorkspaceID string    `json:"workspace_id"`
	ApprovalID  string    `json:"approval_id"`
	Skill       string    `json:"skill"`
	Risk        string    `json:"risk"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	Details     []string  `json:"details,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type AuditFilter struct {
	WorkspaceID string
	ApprovalID  string
	Action      string
	StartTime   time.Time
	EndTime     time.Time
}

type AuditLogger interface {
	Log(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}

// FileAuditLogger appends one JSON line per approval transition to
// <workspace>/governance/approvals.audit.jsonl.
type FileAuditLogger struct {
	mu       sync.RWMutex
	rootPath string
	redact   []*regexp.Regexp
	literals []string
}

// NewFileAuditLogger builds a logger rooted at the workspace root. Each
// redact pattern is compiled as a regexp; patterns that do not compile are
// matched literally.
func NewFileAuditLogger(workspaceRootPath string, redactPatterns []string) *FileAuditLogger {
	al := &FileAuditLogger{rootPath: workspaceRootPath}
	for _, p := range redactPatterns {
		if p == "" {
			continue
		}
		if re, err := regexp.Compile(p); err == nil {
			al.redact = append(al.redact, re)
		} else {
			al.literals = append(al.literals, p)
		}
	}
	return al
}

func (al *FileAuditLogger) path(workspaceID string) (string, error) {
	dir, err := store.GetGovernanceDir(workspaceID, al.rootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, auditFileName), nil
}

func (al *FileAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.TraceID == "" {
		entry.TraceID = logger.GetTraceID(ctx)
	}

	path, err := al.path(entry.WorkspaceID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(al.redacted(entry))
	if err != nil {
		slog.Error("Failed to marshal audit entry", "error", err)
		return err
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write audit entry", "error", err)
		return err
	}
	return nil
}

// Query reads one workspace's audit log. filter.WorkspaceID is required.
func (al *FileAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error) {
	if filter == nil || filter.WorkspaceID == "" {
		return nil, fmt.Errorf("audit query needs a workspace id")
	}
	path, err := al.path(filter.WorkspaceID)
	if err != nil {
		return nil, err
	}

	al.mu.RLock()
	defer al.mu.RUnlock()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return []*AuditEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := []*AuditEntry{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("Failed to parse audit entry", "error", err)
			continue
		}
		if matchesAudit(&entry, filter) {
			entries = append(entries, &entry)
		}
	}
	return entries, scanner.Err()
}

func (al *FileAuditLogger) redacted(entry *AuditEntry) *AuditEntry {
	out := *entry
	out.Description = al.redactString(out.Description)
	if len(out.Details) > 0 {
		out.Details = make([]string, len(entry.Details))
		for i, d := range entry.Details {
			out.Details[i] = al.redactString(d)
		}
	}
	return &out
}

func (al *FileAuditLogger) redactString(s string) string {
	for _, re := range al.redact {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	for _, lit := range al.literals {
		s = strings.ReplaceAll(s, lit, "[REDACTED]")
	}
	return s
}

func matchesAudit(entry *AuditEntry, filter *AuditFilter) bool {
	if filter.ApprovalID != "" && entry.ApprovalID != filter.ApprovalID {
		return false
	}
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}
	return true
}
