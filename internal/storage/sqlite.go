package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dockbridge/internal/notification"
	logx "dockbridge/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectColumns = `id, app_name, app_icon, summary, body, actions, hints, replaces_id, expire_timeout, ctime, enable_preview, processed_type`

func (s *sqliteStore) Put(ctx context.Context, e notification.Entity) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	preview := 0
	if e.EnablePreview() {
		preview = 1
	}
	args := []any{
		e.AppName(), e.AppIcon(), e.Summary(), e.Body(), e.ActionString(), e.HintString(),
		int64(e.ReplacesID()), int64(e.ExpireTimeout()), e.CTime(), preview, int(e.ProcessedType()),
	}
	if !e.IsValid() {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO notifications(app_name, app_icon, summary, body, actions, hints, replaces_id, expire_timeout, ctime, enable_preview, processed_type)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?)`, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, app_name, app_icon, summary, body, actions, hints, replaces_id, expire_timeout, ctime, enable_preview, processed_type)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   app_name=excluded.app_name, app_icon=excluded.app_icon, summary=excluded.summary,
		   body=excluded.body, actions=excluded.actions, hints=excluded.hints,
		   replaces_id=excluded.replaces_id, expire_timeout=excluded.expire_timeout,
		   ctime=excluded.ctime, enable_preview=excluded.enable_preview,
		   processed_type=excluded.processed_type`,
		append([]any{e.ID()}, args...)...)
	if err != nil {
		return 0, err
	}
	return e.ID(), nil
}

func (s *sqliteStore) Get(ctx context.Context, id int64) (notification.Entity, error) {
	if s == nil || s.db == nil {
		return notification.New(), ErrDisabled
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.New(), ErrNotFound
	}
	return e, err
}

func (s *sqliteStore) List(ctx context.Context, f ListFilter) ([]notification.Entity, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	var (
		where []string
		args  []any
	)
	if f.AppName != "" {
		where = append(where, "app_name = ?")
		args = append(args, f.AppName)
	}
	if f.Processed != notification.ProcessedNone {
		where = append(where, "processed_type = ?")
		args = append(args, int(f.Processed))
	}
	if !f.IncludeRemoved {
		where = append(where, "processed_type <> ?")
		args = append(args, int(notification.Removed))
	}
	if !f.Since.IsZero() {
		where = append(where, "ctime >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	q := `SELECT ` + selectColumns + ` FROM notifications`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ctime DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []notification.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetProcessed(ctx context.Context, id int64, t notification.ProcessedType) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET processed_type = ? WHERE id = ?`, int(t), id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *sqliteStore) Delete(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *sqliteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE ctime < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntity rebuilds the flat row and decodes it the same way the file
// driver does, so both drivers share one decoding path.
func scanEntity(sc scanner) (notification.Entity, error) {
	var (
		id, replaces, expire, ctime int64
		preview, processed          int
		app, icon, summary, body    string
		actions, hints              string
	)
	if err := sc.Scan(&id, &app, &icon, &summary, &body, &actions, &hints, &replaces, &expire, &ctime, &preview, &processed); err != nil {
		return notification.New(), err
	}
	row := map[string]string{
		notification.FieldID:            strconv.FormatInt(id, 10),
		notification.FieldAppName:       app,
		notification.FieldAppIcon:       icon,
		notification.FieldSummary:       summary,
		notification.FieldBody:          body,
		notification.FieldActions:       actions,
		notification.FieldHints:         hints,
		notification.FieldReplacesID:    strconv.FormatInt(replaces, 10),
		notification.FieldExpireTimeout: strconv.FormatInt(expire, 10),
		notification.FieldCTime:         strconv.FormatInt(ctime, 10),
		notification.FieldEnablePreview: strconv.FormatBool(preview != 0),
		FieldProcessedType:              strconv.Itoa(processed),
	}
	return fromRow(row), nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
