// Package storage provides the SQLite implementation of the FrameStore interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scenedex/scenedex/internal/models"
)

// SQLiteStore implements FrameStore using SQLite. Embeddings are stored as
// little-endian float32 blobs alongside the metadata so the vector index can
// be rebuilt from the store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS frames (
		path TEXT PRIMARY KEY,
		episode_id TEXT NOT NULL,
		frame_id TEXT NOT NULL,
		timestamp_seconds REAL NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		characters TEXT NOT NULL DEFAULT '[]',
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_frames_episode ON frames(episode_id);
	CREATE INDEX IF NOT EXISTS idx_frames_episode_ts ON frames(episode_id, timestamp_seconds);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateFrames appends a batch of records in one transaction.
func (s *SQLiteStore) CreateFrames(ctx context.Context, frames []*models.FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frames (path, episode_id, frame_id, timestamp_seconds, caption, characters, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now()
	for _, f := range frames {
		if f.Characters == nil {
			f.Characters = []string{}
		}
		chars, err := json.Marshal(f.Characters)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal characters: %w", err)
		}
		f.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			f.Path, f.EpisodeID, f.FrameID, f.Timestamp, f.Caption, string(chars),
			embeddingToBlob(f.Embedding), f.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert frame %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

const frameColumns = `path, episode_id, frame_id, timestamp_seconds, caption, characters, embedding, created_at`

func scanFrame(row interface{ Scan(...any) error }) (*models.FrameRecord, error) {
	var f models.FrameRecord
	var charsJSON string
	var blob []byte
	err := row.Scan(&f.Path, &f.EpisodeID, &f.FrameID, &f.Timestamp, &f.Caption, &charsJSON, &blob, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(charsJSON), &f.Characters); err != nil {
		return nil, fmt.Errorf("unmarshal characters: %w", err)
	}
	f.Embedding = blobToEmbedding(blob)
	return &f, nil
}

// GetFrameByPath returns the record with the exact path, or models.ErrNotFound.
func (s *SQLiteStore) GetFrameByPath(ctx context.Context, path string) (*models.FrameRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+frameColumns+` FROM frames WHERE path = ?`, path)
	f, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: frame %s", models.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFrameByPath deletes one record by exact path match. The delete is
// parameterized; the path is never interpolated into the statement.
func (s *SQLiteStore) DeleteFrameByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM frames WHERE path = ?`, path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFrames returns frames ordered by episode and timestamp.
func (s *SQLiteStore) ListFrames(ctx context.Context, offset, limit int) ([]*models.FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+frameColumns+` FROM frames ORDER BY episode_id, timestamp_seconds LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFrames(rows)
}

// FramesByEpisode returns an episode's frames ordered by timestamp.
func (s *SQLiteStore) FramesByEpisode(ctx context.Context, episodeID string) ([]*models.FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+frameColumns+` FROM frames WHERE episode_id = ? ORDER BY timestamp_seconds`,
		episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFrames(rows)
}

// FrameAt returns the record at a row offset in (episode, timestamp) order.
func (s *SQLiteStore) FrameAt(ctx context.Context, offset int64) (*models.FrameRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+frameColumns+` FROM frames ORDER BY episode_id, timestamp_seconds LIMIT 1 OFFSET ?`,
		offset)
	f, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no frame at offset %d", models.ErrNotFound, offset)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CountFrames returns the total number of records.
func (s *SQLiteStore) CountFrames(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&n)
	return n, err
}

// Episodes returns the distinct episode IDs, sorted.
func (s *SQLiteStore) Episodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT episode_id FROM frames ORDER BY episode_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var episodes []string
	for rows.Next() {
		var ep string
		if err := rows.Scan(&ep); err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// IndexedPaths returns the set of all indexed paths.
func (s *SQLiteStore) IndexedPaths(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM frames`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = true
	}
	return paths, rows.Err()
}

// CharacterCounts returns the character -> frame-count table, sorted by count
// descending, then name. Characters are stored as JSON arrays, so the counting
// happens here rather than in SQL.
func (s *SQLiteStore) CharacterCounts(ctx context.Context) ([]models.CharacterCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT characters FROM frames WHERE characters != '[]'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var charsJSON string
		if err := rows.Scan(&charsJSON); err != nil {
			return nil, err
		}
		var chars []string
		if err := json.Unmarshal([]byte(charsJSON), &chars); err != nil {
			continue
		}
		for _, c := range chars {
			counts[c]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.CharacterCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, models.CharacterCount{Character: c, Frames: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frames != out[j].Frames {
			return out[i].Frames > out[j].Frames
		}
		return out[i].Character < out[j].Character
	})
	return out, nil
}

// ReplaceAllCharacters rewrites the characters column for every listed path in
// one transaction. Used by the character re-tagging pass; callers serialize
// against query traffic.
func (s *SQLiteStore) ReplaceAllCharacters(ctx context.Context, byPath map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE frames SET characters = ? WHERE path = ?`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()
	for path, chars := range byPath {
		if chars == nil {
			chars = []string{}
		}
		data, err := json.Marshal(chars)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal characters: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, string(data), path); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update frame %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// AllEmbeddings returns every record including its embedding, ordered by
// episode and timestamp, for maintenance sweeps.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) ([]*models.FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+frameColumns+` FROM frames ORDER BY episode_id, timestamp_seconds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFrames(rows)
}

func collectFrames(rows *sql.Rows) ([]*models.FrameRecord, error) {
	var frames []*models.FrameRecord
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func embeddingToBlob(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

func blobToEmbedding(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
