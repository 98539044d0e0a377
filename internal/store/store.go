// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists ranked evidence in SQLite and serves full-text
// lookups over past search results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "evidence.db"
)

// Store manages the evidence SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the evidence database at dir/index/evidence.db,
// creating the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			source TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			journal TEXT,
			year TEXT,
			doi TEXT,
			publication_types TEXT,
			venue TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL,
			article_source TEXT NOT NULL REFERENCES articles(source),
			content TEXT NOT NULL,
			relevance REAL,
			level TEXT,
			apa TEXT,
			entities TEXT,
			specialty TEXT,
			intent TEXT,
			query_text TEXT,
			saved_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_article_source ON chunks(article_source)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_level ON chunks(level)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_specialty ON chunks(specialty)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(content, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveEvidence persists the ranked chunks of one completed search together
// with their source articles. Articles are upserted by source ID; chunks are
// appended, so repeated searches accumulate history.
func (s *Store) SaveEvidence(ctx context.Context, q types.Query, chunks []types.EvidenceChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	articleStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (source, title, authors, abstract, journal, year, doi, publication_types, venue)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
			journal=excluded.journal, year=excluded.year, doi=excluded.doi,
			publication_types=excluded.publication_types, venue=excluded.venue`)
	if err != nil {
		return fmt.Errorf("preparing article upsert: %w", err)
	}
	defer articleStmt.Close()

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_id, article_source, content, relevance, level, apa, entities, specialty, intent, query_text, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range chunks {
		a := c.Article
		authorsJSON, _ := json.Marshal(a.Authors)
		pubTypesJSON, _ := json.Marshal(a.PublicationTypes)
		if _, err := articleStmt.ExecContext(ctx,
			a.Source, a.Title, string(authorsJSON), a.Abstract, a.Journal,
			a.Year, a.DOI, string(pubTypesJSON), a.Venue,
		); err != nil {
			return fmt.Errorf("upserting article %s: %w", a.Source, err)
		}

		entitiesJSON, _ := json.Marshal(c.Entities)
		if _, err := chunkStmt.ExecContext(ctx,
			c.ID, a.Source, c.Text, c.Relevance, string(c.Level), c.APA,
			string(entitiesJSON), q.Specialty, string(q.Intent), q.Raw, savedAt,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Stats summarizes the stored evidence.
type Stats struct {
	Articles      int            `json:"articles" yaml:"articles"`
	Chunks        int            `json:"chunks" yaml:"chunks"`
	ChunksByLevel map[string]int `json:"chunks_by_level" yaml:"chunks_by_level"`
}

// Stats reports article and chunk counts, broken down by evidence level.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ChunksByLevel: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM articles`).Scan(&stats.Articles); err != nil {
		return stats, fmt.Errorf("counting articles: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return stats, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT level, count(*) FROM chunks GROUP BY level`)
	if err != nil {
		return stats, fmt.Errorf("counting chunks by level: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return stats, fmt.Errorf("scanning level count: %w", err)
		}
		stats.ChunksByLevel[level] = n
	}
	return stats, rows.Err()
}
