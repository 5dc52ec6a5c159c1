package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"evidentia/internal/config"
)

// Store manages item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// DatabaseFileName is the SQLite file created inside the library directory.
const DatabaseFileName = "items.db"

// Open initializes or connects to the item database and ensures the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LibraryDir, DatabaseFileName))
}

// OpenPath opens a store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewItem inserts a pending record for a newly discovered recording.
// The name column carries a unique index; inserting a duplicate name fails,
// so callers dedup with FindByName first.
func (s *Store) NewItem(ctx context.Context, name, sourcePath string, publishedAt *time.Time) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("item name required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO items (
            name, source_path, published_at, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		name,
		nullableString(sourcePath),
		nullableTime(publishedAt),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindByName returns the item matching a source filename, or nil.
func (s *Store) FindByName(ctx context.Context, name string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = ? LIMIT 1`,
		strings.TrimSpace(name),
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing item and refreshes updated_at.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE items
         SET name = ?, source_path = ?, published_at = ?, audio_file = ?,
             transcript = ?, summary = ?, status = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Name,
		nullableString(item.SourcePath),
		nullableTime(item.PublishedAt),
		nullableString(item.AudioFile),
		nullableString(item.Transcript),
		nullableString(item.Summary),
		item.Status,
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Upsert inserts the item or, when a row with the same id exists, replaces
// its mutable fields. The operation is idempotent keyed by id.
func (s *Store) Upsert(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO items (
            id, name, source_path, published_at, audio_file,
            transcript, summary, status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            source_path = excluded.source_path,
            published_at = excluded.published_at,
            audio_file = excluded.audio_file,
            transcript = excluded.transcript,
            summary = excluded.summary,
            status = excluded.status,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at`,
		nullableID(item.ID),
		item.Name,
		nullableString(item.SourcePath),
		nullableTime(item.PublishedAt),
		nullableString(item.AudioFile),
		nullableString(item.Transcript),
		nullableString(item.Summary),
		item.Status,
		nullableString(item.ErrorMessage),
		item.CreatedAt.Format(time.RFC3339Nano),
		item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	if item.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		item.ID = id
	}
	return nil
}

// ItemsByStatus returns items matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// List returns items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListOrderedByPublishedAt returns items ascending by publication date.
// Items without a published_at fall back to creation time; id is the final
// tiebreaker so the order is deterministic.
func (s *Store) ListOrderedByPublishedAt(ctx context.Context, statuses ...Status) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM items`
	orderClause := ` ORDER BY COALESCE(published_at, created_at), id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list by published date: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// StageTransition pairs a claimable start status with the processing status a
// worker moves it to.
type StageTransition struct {
	From Status
	To   Status
}

// ClaimNext atomically claims the oldest item whose status matches one of the
// transitions, moving it to the transition's processing status. Returns nil
// when no claimable item exists. Safe under concurrent workers sharing one
// store: the conditional update means only one claimant wins a given item.
func (s *Store) ClaimNext(ctx context.Context, transitions []StageTransition) (*Item, error) {
	if len(transitions) == 0 {
		return nil, nil
	}
	byFrom := make(map[Status]Status, len(transitions))
	froms := make([]Status, 0, len(transitions))
	for _, tr := range transitions {
		byFrom[tr.From] = tr.To
		froms = append(froms, tr.From)
	}

	for {
		placeholders := makePlaceholders(len(froms))
		args := make([]any, len(froms))
		for i, status := range froms {
			args[i] = status
		}
		query := `SELECT ` + itemColumns + ` FROM items WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
		row := s.db.QueryRowContext(ctx, query, args...)
		item, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable item: %w", err)
		}

		to, ok := byFrom[item.Status]
		if !ok {
			return nil, fmt.Errorf("no transition for status %s", item.Status)
		}
		now := time.Now().UTC()
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
			to,
			now.Format(time.RFC3339Nano),
			item.ID,
			item.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("claim item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to a sibling worker; try the next candidate.
			continue
		}

		item.Status = to
		item.ErrorMessage = ""
		item.UpdatedAt = now
		return item, nil
	}
}

// ResetStuckProcessing rolls items left mid-stage by a crashed run back to a
// resumable status: extraction restarts from scratch, an interrupted
// transcription resumes from the extracted artifact, and an interrupted
// summarization resumes from the persisted transcript.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	rollbacks := []StageTransition{
		{From: StatusExtracting, To: StatusPending},
		{From: StatusTranscribing, To: StatusExtracted},
		{From: StatusSummarizing, To: StatusTranscribed},
	}
	for _, rb := range rollbacks {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE items SET status = ?, updated_at = ? WHERE status = ?`,
			rb.To,
			time.Now().UTC().Format(time.RFC3339Nano),
			rb.From,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck items: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RetryFailed moves failed items back to pending for reprocessing. With no
// ids, all failed items are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE items
            SET status = ?, error_message = NULL, audio_file = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE items
        SET status = ?, error_message = NULL, audio_file = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates item state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusReady:
			health.Ready += count
		case StatusFailed:
			health.Failed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearReady removes only ready items.
func (s *Store) ClearReady(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE status = ?`, StatusReady)
	if err != nil {
		return 0, fmt.Errorf("clear ready: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items`)
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, name, source_path, published_at, audio_file, transcript, summary, status, error_message, created_at, updated_at"

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		name         string
		sourcePath   sql.NullString
		publishedRaw sql.NullString
		audioFile    sql.NullString
		transcript   sql.NullString
		summary      sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&sourcePath,
		&publishedRaw,
		&audioFile,
		&transcript,
		&summary,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		Name:         name,
		SourcePath:   sourcePath.String,
		AudioFile:    audioFile.String,
		Transcript:   transcript.String,
		Summary:      summary.String,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}

	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			item.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
