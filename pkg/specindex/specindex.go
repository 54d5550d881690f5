// Package specindex persists a compact index of parsed spectrum files: enough
// metadata to search and report on without re-parsing, plus the original file
// bytes gzip-compressed for later replay through pkg/loader. The driver-switch
// idiom and column layout follow the teacher's pkg/database package, adapted
// from marker/upload storage to this library's own file-index schema.
package specindex

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	"specfile/pkg/specmodel"
)

// Record is one indexed file: enough of a reconciled aggregate to search and
// report on, plus the original bytes it was parsed from.
type Record struct {
	ID                     int64
	Filename               string
	Format                 string
	InstrumentManufacturer string
	InstrumentModel        string
	InstrumentID           string
	UUID                   string
	MeasurementCount       int
	DetectorNames          []string
	Passthrough            bool
	AnyNeutron             bool
	ParseWarningCount      int
	RawData                []byte // original bytes; gzip-compressed at rest
	CreatedAt              int64
}

// FromFile builds a Record's metadata (everything but ID/CreatedAt) from a
// reconciled aggregate and the bytes it was loaded from.
func FromFile(filename, format string, f *specmodel.SpectrumFile, raw []byte) Record {
	return Record{
		Filename:               filename,
		Format:                 format,
		InstrumentManufacturer: f.InstrumentManufacturer,
		InstrumentModel:        f.InstrumentModel,
		InstrumentID:           f.InstrumentID,
		UUID:                   f.UUID,
		MeasurementCount:       len(f.Measurements),
		DetectorNames:          f.DetectorNames(),
		Passthrough:            f.Passthrough,
		AnyNeutron:             f.AnyNeutron,
		ParseWarningCount:      len(f.ParseWarnings),
		RawData:                raw,
	}
}

// Store is a pluggable file-index persistence layer. Driver selects the SQL
// dialect: "pgx", "duckdb", or "sqlite".
type Store struct {
	DB     *sql.DB
	Driver string
}

// Open opens driver against dsn and ensures the file_index schema exists.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "pgx", "duckdb", "sqlite":
	default:
		return nil, fmt.Errorf("specindex: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("specindex: open %s: %w", driver, err)
	}
	s := &Store{DB: db, Driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	if s.Driver == "duckdb" {
		if _, err := s.DB.ExecContext(ctx, `CREATE SEQUENCE IF NOT EXISTS file_index_seq`); err != nil {
			return fmt.Errorf("specindex: create sequence: %w", err)
		}
	}

	var stmt string
	switch s.Driver {
	case "pgx":
		stmt = `
			CREATE TABLE IF NOT EXISTS file_index (
				id BIGSERIAL PRIMARY KEY,
				filename TEXT NOT NULL,
				format TEXT NOT NULL,
				instrument_manufacturer TEXT,
				instrument_model TEXT,
				instrument_id TEXT,
				uuid TEXT,
				measurement_count INTEGER NOT NULL,
				detector_names TEXT NOT NULL,
				passthrough BOOLEAN NOT NULL,
				any_neutron BOOLEAN NOT NULL,
				parse_warning_count INTEGER NOT NULL,
				raw_data BYTEA NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`
	case "duckdb":
		stmt = `
			CREATE TABLE IF NOT EXISTS file_index (
				id BIGINT PRIMARY KEY DEFAULT nextval('file_index_seq'),
				filename TEXT NOT NULL,
				format TEXT NOT NULL,
				instrument_manufacturer TEXT,
				instrument_model TEXT,
				instrument_id TEXT,
				uuid TEXT,
				measurement_count INTEGER NOT NULL,
				detector_names TEXT NOT NULL,
				passthrough BOOLEAN NOT NULL,
				any_neutron BOOLEAN NOT NULL,
				parse_warning_count INTEGER NOT NULL,
				raw_data BLOB NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`
	case "sqlite":
		stmt = `
			CREATE TABLE IF NOT EXISTS file_index (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT NOT NULL,
				format TEXT NOT NULL,
				instrument_manufacturer TEXT,
				instrument_model TEXT,
				instrument_id TEXT,
				uuid TEXT,
				measurement_count INTEGER NOT NULL,
				detector_names TEXT NOT NULL,
				passthrough INTEGER NOT NULL,
				any_neutron INTEGER NOT NULL,
				parse_warning_count INTEGER NOT NULL,
				raw_data BLOB NOT NULL,
				created_at INTEGER NOT NULL
			)`
	}
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("specindex: create table: %w", err)
	}
	return nil
}

// Insert stores rec and returns its assigned id. RawData is gzip-compressed
// before being written.
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	namesJSON, err := json.Marshal(rec.DetectorNames)
	if err != nil {
		return 0, fmt.Errorf("specindex: marshal detector names: %w", err)
	}
	compressed, err := gzipBytes(rec.RawData)
	if err != nil {
		return 0, fmt.Errorf("specindex: compress raw data: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	args := []interface{}{
		rec.Filename, rec.Format, rec.InstrumentManufacturer, rec.InstrumentModel, rec.InstrumentID,
		rec.UUID, rec.MeasurementCount, string(namesJSON), rec.Passthrough, rec.AnyNeutron,
		rec.ParseWarningCount, compressed, createdAt,
	}

	switch s.Driver {
	case "pgx", "duckdb":
		const q = `
			INSERT INTO file_index (filename, format, instrument_manufacturer, instrument_model,
			                         instrument_id, uuid, measurement_count, detector_names,
			                         passthrough, any_neutron, parse_warning_count, raw_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, to_timestamp($13))
			RETURNING id`
		var id int64
		err := s.DB.QueryRowContext(ctx, q, args...).Scan(&id)
		return id, err

	case "sqlite":
		const q = `
			INSERT INTO file_index (filename, format, instrument_manufacturer, instrument_model,
			                         instrument_id, uuid, measurement_count, detector_names,
			                         passthrough, any_neutron, parse_warning_count, raw_data, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		result, err := s.DB.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()

	default:
		return 0, fmt.Errorf("specindex: unsupported driver %q", s.Driver)
	}
}

// Get retrieves the indexed record for id, decompressing RawData.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	query := `
		SELECT id, filename, format, instrument_manufacturer, instrument_model, instrument_id, uuid,
		       measurement_count, detector_names, passthrough, any_neutron, parse_warning_count,
		       raw_data, created_at
		FROM file_index WHERE id = ?`
	if s.Driver == "pgx" || s.Driver == "duckdb" {
		query = `
			SELECT id, filename, format, instrument_manufacturer, instrument_model, instrument_id, uuid,
			       measurement_count, detector_names, passthrough, any_neutron, parse_warning_count,
			       raw_data, EXTRACT(EPOCH FROM created_at)::BIGINT
			FROM file_index WHERE id = $1`
	}

	var rec Record
	var namesJSON string
	var compressed []byte
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Filename, &rec.Format, &rec.InstrumentManufacturer, &rec.InstrumentModel,
		&rec.InstrumentID, &rec.UUID, &rec.MeasurementCount, &namesJSON, &rec.Passthrough,
		&rec.AnyNeutron, &rec.ParseWarningCount, &compressed, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("specindex: no record with id %d", id)
		}
		return nil, fmt.Errorf("specindex: query record: %w", err)
	}

	if err := json.Unmarshal([]byte(namesJSON), &rec.DetectorNames); err != nil {
		return nil, fmt.Errorf("specindex: unmarshal detector names: %w", err)
	}
	raw, err := gunzipBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("specindex: decompress raw data: %w", err)
	}
	rec.RawData = raw
	return &rec, nil
}

// ListByFormat returns every indexed record whose Format matches, newest
// first, with RawData omitted (callers use Get to fetch the bytes for one
// record at a time rather than paying the decompression cost for a list).
func (s *Store) ListByFormat(ctx context.Context, format string) ([]Record, error) {
	query := `
		SELECT id, filename, format, instrument_manufacturer, instrument_model, instrument_id, uuid,
		       measurement_count, detector_names, passthrough, any_neutron, parse_warning_count, created_at
		FROM file_index WHERE format = ? ORDER BY created_at DESC`
	if s.Driver == "pgx" || s.Driver == "duckdb" {
		query = strings.Replace(query, "?", "$1", 1)
	}

	rows, err := s.DB.QueryContext(ctx, query, format)
	if err != nil {
		return nil, fmt.Errorf("specindex: query by format: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var namesJSON string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Format, &rec.InstrumentManufacturer,
			&rec.InstrumentModel, &rec.InstrumentID, &rec.UUID, &rec.MeasurementCount, &namesJSON,
			&rec.Passthrough, &rec.AnyNeutron, &rec.ParseWarningCount, &rec.CreatedAt); err != nil {
			continue
		}
		_ = json.Unmarshal([]byte(namesJSON), &rec.DetectorNames)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
