package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is a read-only view over a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open checks that path exists and opens it read-only. A missing file yields
// an error wrapping ErrNotFound without touching the database engine.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database file %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking database file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("database path %q is a directory", path)
	}

	dsn, err := readOnlyDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection so the per-connection pragmas always apply.
	db.SetMaxOpenConns(1)

	return &Store{db: db, path: path}, nil
}

func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: "mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(1)",
	}
	return u.String(), nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// --- Catalog ---

// TableExists reports whether a table called name exists.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListTables returns every table name in the catalog, sorted by name.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableColumns lists the columns of table in declaration order. The table
// name is bound as a parameter of the pragma_table_info table-valued function.
func (s *Store) TableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *Store) columnSet(ctx context.Context, table string) (map[string]bool, error) {
	cols, err := s.TableColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[strings.ToLower(c.Name)] = true
	}
	return set, nil
}

// --- Container states ---

// ContainerStates returns one row per state ordered by user_id. Timestamp
// columns are read only when the table has them.
func (s *Store) ContainerStates(ctx context.Context) ([]ContainerState, error) {
	cols, err := s.columnSet(ctx, TableContainerStates)
	if err != nil {
		return nil, err
	}
	hasCreated, hasUpdated := cols["created_at"], cols["updated_at"]

	selectList := []string{"user_id", "COALESCE(length(CAST(state_data AS BLOB)), 0)", "version"}
	// DATETIME columns come back from the driver as time.Time; the cast keeps
	// the stored text.
	if hasCreated {
		selectList = append(selectList, "CAST(created_at AS TEXT)")
	}
	if hasUpdated {
		selectList = append(selectList, "CAST(updated_at AS TEXT)")
	}
	query := "SELECT " + strings.Join(selectList, ", ") + " FROM container_states ORDER BY user_id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ContainerState
	for rows.Next() {
		var (
			userID               sql.NullString
			version              sql.NullInt64
			createdAt, updatedAt sql.NullString
			st                   ContainerState
		)
		dest := []any{&userID, &st.DataSize, &version}
		if hasCreated {
			dest = append(dest, &createdAt)
		}
		if hasUpdated {
			dest = append(dest, &updatedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		st.UserID = nullText(userID)
		st.Version = version.Int64
		st.HasCreatedAt, st.HasUpdatedAt = hasCreated, hasUpdated
		if hasCreated {
			st.CreatedAt = nullText(createdAt)
		}
		if hasUpdated {
			st.UpdatedAt = nullText(updatedAt)
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// StatePreview returns up to n leading bytes of the first row's state blob.
// ok is false when the table has no rows.
func (s *Store) StatePreview(ctx context.Context, n int) (data []byte, ok bool, err error) {
	var blob []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT substr(CAST(state_data AS BLOB), 1, ?) FROM container_states ORDER BY user_id LIMIT 1", n,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// --- Interactions ---

// CountInteractions returns the number of interaction rows.
func (s *Store) CountInteractions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interaction_data").Scan(&count)
	return count, err
}

// TopInteractionTypes returns at most limit types by descending count.
func (s *Store) TopInteractionTypes(ctx context.Context, limit int) ([]TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) AS count
		FROM interaction_data
		GROUP BY type
		ORDER BY count DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TypeCount
	for rows.Next() {
		var typ sql.NullString
		var tc TypeCount
		if err := rows.Scan(&typ, &tc.Count); err != nil {
			return nil, err
		}
		tc.Type = nullText(typ)
		results = append(results, tc)
	}
	return results, rows.Err()
}

// InteractionsByUserAndType counts interactions per (user_id, type) pair.
func (s *Store) InteractionsByUserAndType(ctx context.Context) ([]UserTypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, type, COUNT(*) AS count
		FROM interaction_data
		GROUP BY user_id, type
		ORDER BY user_id, type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []UserTypeCount
	for rows.Next() {
		var userID, typ sql.NullString
		var uc UserTypeCount
		if err := rows.Scan(&userID, &typ, &uc.Count); err != nil {
			return nil, err
		}
		uc.UserID, uc.Type = nullText(userID), nullText(typ)
		results = append(results, uc)
	}
	return results, rows.Err()
}

// RecentInteractions returns the latest limit interactions, newest first.
func (s *Store) RecentInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	cols, err := s.columnSet(ctx, TableInteractionData)
	if err != nil {
		return nil, err
	}
	hasDetails := cols["details"]

	query := "SELECT type, user_id, timestamp FROM interaction_data ORDER BY timestamp DESC LIMIT ?"
	if hasDetails {
		query = "SELECT type, user_id, timestamp, details FROM interaction_data ORDER BY timestamp DESC LIMIT ?"
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var typ, userID, details sql.NullString
		var ts sql.NullInt64
		dest := []any{&typ, &userID, &ts}
		if hasDetails {
			dest = append(dest, &details)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ix := Interaction{
			Type:      nullText(typ),
			UserID:    nullText(userID),
			Timestamp: ts.Int64,
		}
		if hasDetails {
			ix.Details = nullText(details)
		}
		results = append(results, ix)
	}
	return results, rows.Err()
}

func nullText(v sql.NullString) string {
	if !v.Valid {
		return "NULL"
	}
	return v.String
}
