package metadata

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// captureID is the single capture stored per database.
const captureID = 1

// ErrSchemaMismatch indicates a database written by an incompatible version.
var ErrSchemaMismatch = errors.New("metadata schema version mismatch")

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// LoadSQLite reads a capture from an SQLite sidecar.
func LoadSQLite(ctx context.Context, path string) (*Metadata, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return nil, fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}

	m := &Metadata{}
	vp := &m.VideoParameters
	var system string
	row := db.QueryRowContext(ctx, `SELECT system, is_mapped, number_of_sequential_fields,
		field_width, field_height, sample_rate, colour_burst_start, colour_burst_end,
		active_video_start, active_video_end, first_active_field_line, last_active_field_line,
		first_active_frame_line, last_active_frame_line, black_16b_ire, white_16b_ire
		FROM capture WHERE capture_id = ?`, captureID)
	if err := row.Scan(&system, &vp.IsMapped, &vp.NumberOfSequentialFields,
		&vp.FieldWidth, &vp.FieldHeight, &vp.SampleRate, &vp.ColourBurstStart, &vp.ColourBurstEnd,
		&vp.ActiveVideoStart, &vp.ActiveVideoEnd, &vp.FirstActiveFieldLine, &vp.LastActiveFieldLine,
		&vp.FirstActiveFrameLine, &vp.LastActiveFrameLine, &vp.Black16bIre, &vp.White16bIre); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	vp.IsSourcePal = system == "PAL"

	if err := loadFields(ctx, db, m); err != nil {
		return nil, err
	}
	if err := loadVBI(ctx, db, m); err != nil {
		return nil, err
	}
	if err := loadDropouts(ctx, db, m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadFields(ctx context.Context, db *sql.DB, m *Metadata) error {
	rows, err := db.QueryContext(ctx, `SELECT field_id, is_first_field, sync_conf, median_burst_ire,
		field_phase_id, audio_samples, pad FROM field_record WHERE capture_id = ? ORDER BY field_id`, captureID)
	if err != nil {
		return fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int
			f  Field
		)
		if err := rows.Scan(&id, &f.IsFirstField, &f.SyncConf, &f.MedianBurstIRE,
			&f.FieldPhaseID, &f.AudioSamples, &f.Pad); err != nil {
			return fmt.Errorf("scan field: %w", err)
		}
		if id != len(m.Fields) {
			return fmt.Errorf("field_record ids are not contiguous at %d", id)
		}
		f.SeqNo = id + 1
		m.Fields = append(m.Fields, f)
	}
	return rows.Err()
}

func loadVBI(ctx context.Context, db *sql.DB, m *Metadata) error {
	rows, err := db.QueryContext(ctx, `SELECT field_id, vbi0, vbi1, vbi2 FROM vbi WHERE capture_id = ?`, captureID)
	if err != nil {
		return fmt.Errorf("query vbi: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var v VBI
		if err := rows.Scan(&id, &v.Data[0], &v.Data[1], &v.Data[2]); err != nil {
			return fmt.Errorf("scan vbi: %w", err)
		}
		if id < 0 || id >= len(m.Fields) {
			return fmt.Errorf("vbi row for unknown field %d", id)
		}
		m.Fields[id].VBI = &v
	}
	return rows.Err()
}

func loadDropouts(ctx context.Context, db *sql.DB, m *Metadata) error {
	rows, err := db.QueryContext(ctx, `SELECT field_id, field_line, startx, endx FROM drop_outs
		WHERE capture_id = ? ORDER BY field_id, rowid`, captureID)
	if err != nil {
		return fmt.Errorf("query dropouts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, line, startX, endX int
		if err := rows.Scan(&id, &line, &startX, &endX); err != nil {
			return fmt.Errorf("scan dropout: %w", err)
		}
		if id < 0 || id >= len(m.Fields) {
			return fmt.Errorf("dropout row for unknown field %d", id)
		}
		f := &m.Fields[id]
		if f.DropOuts == nil {
			f.DropOuts = &DropOuts{}
		}
		f.DropOuts.StartX = append(f.DropOuts.StartX, startX)
		f.DropOuts.EndX = append(f.DropOuts.EndX, endX)
		f.DropOuts.FieldLine = append(f.DropOuts.FieldLine, line)
	}
	return rows.Err()
}

// SaveSQLite writes the capture into a new SQLite database at path. The file
// must not already contain a capture.
func SaveSQLite(ctx context.Context, path string, m *Metadata) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	vp := m.VideoParameters
	system := "NTSC"
	if vp.IsSourcePal {
		system = "PAL"
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO capture (capture_id, system, is_mapped,
		number_of_sequential_fields, field_width, field_height, sample_rate, colour_burst_start,
		colour_burst_end, active_video_start, active_video_end, first_active_field_line,
		last_active_field_line, first_active_frame_line, last_active_frame_line, black_16b_ire, white_16b_ire)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		captureID, system, vp.IsMapped, len(m.Fields), vp.FieldWidth, vp.FieldHeight, vp.SampleRate,
		vp.ColourBurstStart, vp.ColourBurstEnd, vp.ActiveVideoStart, vp.ActiveVideoEnd,
		vp.FirstActiveFieldLine, vp.LastActiveFieldLine, vp.FirstActiveFrameLine, vp.LastActiveFrameLine,
		vp.Black16bIre, vp.White16bIre); err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}

	fieldStmt, err := tx.PrepareContext(ctx, `INSERT INTO field_record (capture_id, field_id, is_first_field,
		sync_conf, median_burst_ire, field_phase_id, audio_samples, pad) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare field insert: %w", err)
	}
	defer fieldStmt.Close()
	vbiStmt, err := tx.PrepareContext(ctx, `INSERT INTO vbi (capture_id, field_id, vbi0, vbi1, vbi2) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare vbi insert: %w", err)
	}
	defer vbiStmt.Close()
	dropoutStmt, err := tx.PrepareContext(ctx, `INSERT INTO drop_outs (capture_id, field_id, field_line, startx, endx) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dropout insert: %w", err)
	}
	defer dropoutStmt.Close()

	for id, f := range m.Fields {
		if _, err := fieldStmt.ExecContext(ctx, captureID, id, f.IsFirstField, f.SyncConf,
			f.MedianBurstIRE, f.FieldPhaseID, f.AudioSamples, f.Pad); err != nil {
			return fmt.Errorf("insert field %d: %w", id, err)
		}
		if f.VBI != nil {
			if _, err := vbiStmt.ExecContext(ctx, captureID, id, f.VBI.Data[0], f.VBI.Data[1], f.VBI.Data[2]); err != nil {
				return fmt.Errorf("insert vbi for field %d: %w", id, err)
			}
		}
		for _, d := range f.Dropouts() {
			if _, err := dropoutStmt.ExecContext(ctx, captureID, id, d.Line, d.StartX, d.EndX); err != nil {
				return fmt.Errorf("insert dropout for field %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}
