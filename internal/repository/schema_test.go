package repository

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/connectra/migrations"
)

// tableColumns extracts the column names of a CREATE TABLE block from the
// embedded migrations.
func tableColumns(t *testing.T, table string) map[string]bool {
	t.Helper()

	var ddl strings.Builder
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	for _, name := range names {
		b, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		ddl.Write(b)
		ddl.WriteByte('\n')
	}

	re := regexp.MustCompile(`(?is)CREATE TABLE IF NOT EXISTS ` + table + `\s*\((.*?)\n\);`)
	m := re.FindStringSubmatch(ddl.String())
	if m == nil {
		t.Fatalf("no CREATE TABLE block for %q in migrations", table)
	}

	cols := make(map[string]bool)
	for _, line := range strings.Split(m[1], "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if name == "primary" || name == "unique" || name == "constraint" || name == "foreign" {
			continue
		}
		cols[name] = true
	}
	return cols
}

// Every column the repositories select must exist in the migrated schema.
// Guards against queries drifting ahead of the DDL, which only surfaces at
// runtime as a 42703 error.
func TestMigrationsDefineQueriedColumns(t *testing.T) {
	tests := []struct {
		table string
		cols  []string
	}{
		{"users", []string{"id", "username", "display_name", "bio", "avatar_url", "is_online", "created_at"}},
		{"chats", []string{"id", "name", "chat_type", "created_at"}},
		{"chat_participants", []string{"chat_id", "username"}},
		{"messages", []string{"id", "chat_id", "username", "content", "raw_content", "mentions", "created_at"}},
		{"attachments", []string{"id", "message_id", "filename", "stored_filename", "file_type", "file_size"}},
		{"follows", []string{"follower", "followee", "created_at"}},
		{"clips", []string{"id", "author", "caption", "filename", "likes", "shares", "comments", "created_at"}},
		{"clip_comments", []string{"id", "clip_id", "author", "content", "likes", "created_at"}},
		{"clip_likes", []string{"clip_id", "username"}},
		{"comment_likes", []string{"comment_id", "username"}},
		{"clip_shares", []string{"clip_id", "username"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			got := tableColumns(t, tt.table)
			for _, col := range tt.cols {
				if !got[col] {
					t.Errorf("table %s: column %s queried but not defined", tt.table, col)
				}
			}
		})
	}
}
