// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// QueryOptions holds parameters for stored-evidence queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over chunk content.
	Query string

	// Specialty filters by the specialty inferred for the original request.
	Specialty string

	// Level filters by evidence level.
	Level types.EvidenceLevel

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Specialty == "" && q.Level == ""
}

// StoredChunk is an EvidenceChunk with the request context it was saved
// under.
type StoredChunk struct {
	types.EvidenceChunk
	Specialty string `json:"specialty" yaml:"specialty"`
	QueryText string `json:"query_text" yaml:"query_text"`
	SavedAt   string `json:"saved_at" yaml:"saved_at"`
}

// Retrieve queries stored evidence with optional full-text search and
// structured filters. Full-text queries are ranked by FTS5 relevance;
// structured-only queries are sorted by relevance score descending.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]StoredChunk, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT c.chunk_id, c.content, c.relevance, c.level, c.apa, c.entities,
				c.specialty, c.query_text, c.saved_at,
				a.source, a.title, a.authors, a.abstract, a.journal, a.year, a.doi,
				a.publication_types, a.venue
			FROM chunks_fts
			JOIN chunks c ON c.rowid = chunks_fts.rowid
			LEFT JOIN articles a ON c.article_source = a.source
			WHERE chunks_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT c.chunk_id, c.content, c.relevance, c.level, c.apa, c.entities,
				c.specialty, c.query_text, c.saved_at,
				a.source, a.title, a.authors, a.abstract, a.journal, a.year, a.doi,
				a.publication_types, a.venue
			FROM chunks c
			LEFT JOIN articles a ON c.article_source = a.source
			WHERE 1=1`)
	}

	if opts.Specialty != "" {
		qb.WriteString(` AND c.specialty = ?`)
		args = append(args, opts.Specialty)
	}
	if opts.Level != "" {
		qb.WriteString(` AND c.level = ?`)
		args = append(args, string(opts.Level))
	}

	if useFTS {
		qb.WriteString(` ORDER BY chunks_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY c.relevance DESC, c.chunk_id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying evidence store: %w", err)
	}
	defer rows.Close()

	var results []StoredChunk
	for rows.Next() {
		var (
			sc           StoredChunk
			level        string
			entitiesJSON sql.NullString
			source       sql.NullString
			title        sql.NullString
			authorsJSON  sql.NullString
			abstract     sql.NullString
			journal      sql.NullString
			year         sql.NullString
			doi          sql.NullString
			pubTypesJSON sql.NullString
			venue        sql.NullString
		)

		if err := rows.Scan(
			&sc.ID, &sc.Text, &sc.Relevance, &level, &sc.APA, &entitiesJSON,
			&sc.Specialty, &sc.QueryText, &sc.SavedAt,
			&source, &title, &authorsJSON, &abstract, &journal, &year, &doi,
			&pubTypesJSON, &venue,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		sc.Level = types.EvidenceLevel(level)
		if entitiesJSON.Valid {
			if err := json.Unmarshal([]byte(entitiesJSON.String), &sc.Entities); err != nil {
				return nil, fmt.Errorf("decoding entities for chunk %s: %w", sc.ID, err)
			}
		}
		sc.Article = types.Article{
			Source:  source.String,
			Title:   title.String,
			Journal: journal.String,
			Year:    year.String,
			DOI:     doi.String,
			Venue:   venue.String,
		}
		if abstract.Valid {
			sc.Article.Abstract = abstract.String
		}
		if authorsJSON.Valid {
			if err := json.Unmarshal([]byte(authorsJSON.String), &sc.Article.Authors); err != nil {
				return nil, fmt.Errorf("decoding authors for chunk %s: %w", sc.ID, err)
			}
		}
		if pubTypesJSON.Valid {
			if err := json.Unmarshal([]byte(pubTypesJSON.String), &sc.Article.PublicationTypes); err != nil {
				return nil, fmt.Errorf("decoding publication types for chunk %s: %w", sc.ID, err)
			}
		}

		results = append(results, sc)
	}

	return results, rows.Err()
}
