package adapters

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	_ "modernc.org/sqlite"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS install_history (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id TEXT NOT NULL,
    op_session   INTEGER NOT NULL DEFAULT 0,
    recorded_at  INTEGER NOT NULL,
    package_name TEXT NOT NULL,
    version_code INTEGER NOT NULL DEFAULT 0,
    version_name TEXT NOT NULL DEFAULT '',
    event        TEXT NOT NULL,
    message      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_install_history_package ON install_history(package_name, recorded_at);
CREATE INDEX IF NOT EXISTS idx_install_history_operation ON install_history(operation_id, op_session);

CREATE TABLE IF NOT EXISTS install_sessions (
    session_id   INTEGER PRIMARY KEY,
    package_name TEXT NOT NULL,
    created_at   INTEGER NOT NULL
);
`

// HistoryStoreAdapter persists terminal outcomes and owned install sessions
// in a single SQLite file.
type HistoryStoreAdapter struct {
	db    *sql.DB
	Clock func() time.Time
}

// NewHistoryStoreAdapter opens (and migrates) the database at path. Use
// ":memory:" in tests.
func NewHistoryStoreAdapter(path string) (*HistoryStoreAdapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("history database path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open history database").
			WithCause(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to configure history database").
				WithCause(err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create history schema").
			WithCause(err)
	}
	return &HistoryStoreAdapter{db: db, Clock: time.Now}, nil
}

func (s *HistoryStoreAdapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *HistoryStoreAdapter) Append(ctx context.Context, entry types.HistoryEntry) error {
	recorded := entry.Time
	if recorded.IsZero() {
		recorded = s.Clock()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO install_history (operation_id, op_session, recorded_at, package_name, version_code, version_name, event, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OperationID, int64(entry.Session), recorded.UnixNano(), entry.PackageName, entry.VersionCode, entry.VersionName, string(entry.Event), entry.Message)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to append history entry").
			WithCause(err)
	}
	return nil
}

// List returns entries newest first.
func (s *HistoryStoreAdapter) List(ctx context.Context, filter types.HistoryFilter) ([]types.HistoryEntry, error) {
	query := `SELECT operation_id, op_session, recorded_at, package_name, version_code, version_name, event, message FROM install_history`
	var where []string
	var args []any
	if id := strings.TrimSpace(filter.OperationID); id != "" {
		where = append(where, `operation_id = ?`)
		args = append(args, id)
	}
	if filter.Session != 0 {
		where = append(where, `op_session = ?`)
		args = append(args, int64(filter.Session))
	}
	if name := strings.TrimSpace(filter.PackageName); name != "" {
		where = append(where, `package_name = ?`)
		args = append(args, name)
	}
	if !filter.Since.IsZero() {
		where = append(where, `recorded_at >= ?`)
		args = append(args, filter.Since.UnixNano())
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY recorded_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to query history").
			WithCause(err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		var entry types.HistoryEntry
		var session, recorded int64
		var event string
		if err := rows.Scan(&entry.OperationID, &session, &recorded, &entry.PackageName, &entry.VersionCode, &entry.VersionName, &event, &entry.Message); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read history row").
				WithCause(err)
		}
		entry.Session = uint64(session)
		entry.Time = time.Unix(0, recorded)
		entry.Event = types.Action(event)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read history").
			WithCause(err)
	}
	return entries, nil
}

func (s *HistoryStoreAdapter) RecordSession(ctx context.Context, sessionID int, packageName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO install_sessions (session_id, package_name, created_at) VALUES (?, ?, ?)`,
		sessionID, packageName, s.Clock().UnixNano())
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to record install session").
			WithCause(err)
	}
	return nil
}

func (s *HistoryStoreAdapter) ForgetSession(ctx context.Context, sessionID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM install_sessions WHERE session_id = ?`, sessionID); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to forget install session").
			WithCause(err)
	}
	return nil
}

func (s *HistoryStoreAdapter) OwnedSessions(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM install_sessions ORDER BY session_id`)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to query install sessions").
			WithCause(err)
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read install session").
				WithCause(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var (
	_ ports.HistoryPort         = (*HistoryStoreAdapter)(nil)
	_ ports.SessionRegistryPort = (*HistoryStoreAdapter)(nil)
)
