package chunkstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gauravreddy08/vector-db/internal/encoding"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// SQLite is an optional durable Store backend, using WAL mode for
// concurrent readers. It exists purely as an alternative external
// metadata collaborator alongside Memory; the volatile index core itself
// has no persisted state and never touches this package.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed Store at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=cache_size(-2000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("chunkstore: enable foreign keys: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS libraries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		index_kind TEXT NOT NULL,
		index_params TEXT,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		library_id TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		library_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_library_id ON documents(library_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_library_id ON chunks(library_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("chunkstore: create tables: %w", err)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateLibrary(lib Library) (Library, error) {
	ctx := context.Background()
	params, err := encoding.EncodeMetadata(lib.IndexParams)
	if err != nil {
		return Library{}, verr.Validation("chunkstore.CreateLibrary", err)
	}
	meta, err := encoding.EncodeMetadata(lib.Metadata)
	if err != nil {
		return Library{}, verr.Validation("chunkstore.CreateLibrary", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO libraries (id, name, index_kind, index_params, metadata) VALUES (?, ?, ?, ?, ?)`,
		lib.ID, lib.Name, lib.IndexKind, params, meta)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return Library{}, verr.AlreadyExists("chunkstore.CreateLibrary", fmt.Errorf("library %q already exists", lib.ID))
		}
		return Library{}, fmt.Errorf("chunkstore: create library: %w", err)
	}
	return s.GetLibraryOrErr(lib.ID)
}

// GetLibraryOrErr fetches a library that must exist; used right after insert.
func (s *SQLite) GetLibraryOrErr(id string) (Library, error) {
	lib, ok, err := s.GetLibrary(id)
	if err != nil {
		return Library{}, err
	}
	if !ok {
		return Library{}, verr.NotFound("chunkstore.GetLibrary", fmt.Errorf("library %q not found", id))
	}
	return lib, nil
}

func (s *SQLite) GetLibrary(id string) (Library, bool, error) {
	row := s.db.QueryRow(`SELECT id, name, index_kind, index_params, metadata, created_at, updated_at FROM libraries WHERE id = ?`, id)
	lib, err := scanLibrary(row)
	if err == sql.ErrNoRows {
		return Library{}, false, nil
	}
	if err != nil {
		return Library{}, false, fmt.Errorf("chunkstore: get library: %w", err)
	}
	lib.DocumentIDs, err = s.documentIDsForLibrary(id)
	if err != nil {
		return Library{}, false, err
	}
	return lib, true, nil
}

func (s *SQLite) documentIDsForLibrary(libraryID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents WHERE library_id = ?`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: list document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) ListLibraries() ([]Library, error) {
	rows, err := s.db.Query(`SELECT id, name, index_kind, index_params, metadata, created_at, updated_at FROM libraries`)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: list libraries: %w", err)
	}
	defer rows.Close()

	var out []Library
	for rows.Next() {
		lib, err := scanLibraryRows(rows)
		if err != nil {
			return nil, err
		}
		lib.DocumentIDs, err = s.documentIDsForLibrary(lib.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateLibrary(lib Library) (Library, error) {
	params, err := encoding.EncodeMetadata(lib.IndexParams)
	if err != nil {
		return Library{}, verr.Validation("chunkstore.UpdateLibrary", err)
	}
	meta, err := encoding.EncodeMetadata(lib.Metadata)
	if err != nil {
		return Library{}, verr.Validation("chunkstore.UpdateLibrary", err)
	}

	res, err := s.db.Exec(
		`UPDATE libraries SET name = ?, index_kind = ?, index_params = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		lib.Name, lib.IndexKind, params, meta, lib.ID)
	if err != nil {
		return Library{}, fmt.Errorf("chunkstore: update library: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Library{}, verr.NotFound("chunkstore.UpdateLibrary", fmt.Errorf("library %q not found", lib.ID))
	}
	return s.GetLibraryOrErr(lib.ID)
}

// DeleteLibrary is idempotent; cascading document/chunk removal happens via
// ON DELETE CASCADE.
func (s *SQLite) DeleteLibrary(id string) error {
	_, err := s.db.Exec(`DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("chunkstore: delete library: %w", err)
	}
	return nil
}

func (s *SQLite) CreateDocument(doc Document) (Document, error) {
	meta, err := encoding.EncodeMetadata(doc.Metadata)
	if err != nil {
		return Document{}, verr.Validation("chunkstore.CreateDocument", err)
	}
	_, err = s.db.Exec(`INSERT INTO documents (id, library_id, metadata) VALUES (?, ?, ?)`, doc.ID, doc.LibraryID, meta)
	if err != nil {
		return Document{}, fmt.Errorf("chunkstore: create document: %w", err)
	}
	got, _, err := s.GetDocument(doc.ID)
	return got, err
}

func (s *SQLite) GetDocument(id string) (Document, bool, error) {
	row := s.db.QueryRow(`SELECT id, library_id, metadata, created_at, updated_at FROM documents WHERE id = ?`, id)
	var doc Document
	var metaJSON string
	if err := row.Scan(&doc.ID, &doc.LibraryID, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("chunkstore: get document: %w", err)
	}
	meta, err := encoding.DecodeMetadata(metaJSON)
	if err != nil {
		return Document{}, false, err
	}
	doc.Metadata = meta

	chunks, err := s.ListChunksByDocument(id)
	if err != nil {
		return Document{}, false, err
	}
	for _, c := range chunks {
		doc.ChunkIDs = append(doc.ChunkIDs, c.ID)
	}
	return doc, true, nil
}

// DeleteDocument is idempotent; chunk removal cascades via foreign key.
func (s *SQLite) DeleteDocument(id string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("chunkstore: delete document: %w", err)
	}
	return nil
}

// AttachChunkToDocument sets the chunk row's document_id column, which is
// its attachment in SQLite. It fails with not-found if no such chunk row
// exists.
func (s *SQLite) AttachChunkToDocument(documentID, chunkID string) error {
	res, err := s.db.Exec(`UPDATE chunks SET document_id = ? WHERE id = ?`, documentID, chunkID)
	if err != nil {
		return fmt.Errorf("chunkstore: attach chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return verr.NotFound("chunkstore.AttachChunkToDocument", fmt.Errorf("chunk %q not found", chunkID))
	}
	return nil
}

func (s *SQLite) DetachChunkFromDocument(_, _ string) error {
	return nil
}

func (s *SQLite) CreateChunk(c Chunk) (Chunk, error) {
	blob, err := encoding.EncodeVector(c.Embedding)
	if err != nil {
		return Chunk{}, verr.Validation("chunkstore.CreateChunk", err)
	}
	meta, err := encoding.EncodeMetadata(c.Metadata)
	if err != nil {
		return Chunk{}, verr.Validation("chunkstore.CreateChunk", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO chunks (id, library_id, document_id, text, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.LibraryID, c.DocumentID, c.Text, blob, meta)
	if err != nil {
		return Chunk{}, fmt.Errorf("chunkstore: create chunk: %w", err)
	}
	got, _, err := s.GetChunk(c.ID)
	return got, err
}

func (s *SQLite) GetChunk(id string) (Chunk, bool, error) {
	row := s.db.QueryRow(`SELECT id, library_id, document_id, text, embedding, metadata, created_at, updated_at FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, err
	}
	return c, true, nil
}

func (s *SQLite) GetChunks(ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(fmt.Sprintf(`SELECT id, library_id, document_id, text, embedding, metadata, created_at, updated_at FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: get chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateChunk(c Chunk) (Chunk, error) {
	blob, err := encoding.EncodeVector(c.Embedding)
	if err != nil {
		return Chunk{}, verr.Validation("chunkstore.UpdateChunk", err)
	}
	meta, err := encoding.EncodeMetadata(c.Metadata)
	if err != nil {
		return Chunk{}, verr.Validation("chunkstore.UpdateChunk", err)
	}
	res, err := s.db.Exec(
		`UPDATE chunks SET text = ?, embedding = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		c.Text, blob, meta, c.ID)
	if err != nil {
		return Chunk{}, fmt.Errorf("chunkstore: update chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Chunk{}, verr.NotFound("chunkstore.UpdateChunk", fmt.Errorf("chunk %q not found", c.ID))
	}
	got, _, err := s.GetChunk(c.ID)
	return got, err
}

// DeleteChunk is idempotent.
func (s *SQLite) DeleteChunk(id string) error {
	_, err := s.db.Exec(`DELETE FROM chunks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("chunkstore: delete chunk: %w", err)
	}
	return nil
}

func (s *SQLite) ListChunksByDocument(documentID string) ([]Chunk, error) {
	rows, err := s.db.Query(`SELECT id, library_id, document_id, text, embedding, metadata, created_at, updated_at FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: list chunks by document: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibrary(row rowScanner) (Library, error) {
	var lib Library
	var paramsJSON, metaJSON string
	if err := row.Scan(&lib.ID, &lib.Name, &lib.IndexKind, &paramsJSON, &metaJSON, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
		return Library{}, err
	}
	params, err := encoding.DecodeMetadata(paramsJSON)
	if err != nil {
		return Library{}, err
	}
	meta, err := encoding.DecodeMetadata(metaJSON)
	if err != nil {
		return Library{}, err
	}
	lib.IndexParams = params
	lib.Metadata = meta
	return lib, nil
}

func scanLibraryRows(rows *sql.Rows) (Library, error) { return scanLibrary(rows) }

func scanChunk(row rowScanner) (Chunk, error) {
	var c Chunk
	var blob []byte
	var metaJSON string
	if err := row.Scan(&c.ID, &c.LibraryID, &c.DocumentID, &c.Text, &blob, &metaJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Chunk{}, err
	}
	vec, err := encoding.DecodeVector(blob)
	if err != nil {
		return Chunk{}, err
	}
	meta, err := encoding.DecodeMetadata(metaJSON)
	if err != nil {
		return Chunk{}, err
	}
	c.Embedding = vec
	c.Metadata = meta
	return c, nil
}

func scanChunkRows(rows *sql.Rows) (Chunk, error) { return scanChunk(rows) }

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "constraint failed")
}
