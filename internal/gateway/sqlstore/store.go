// Package sqlstore keeps patients in a SQL database: a local sqlite file by default, or
// Postgres through pgx.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
	"patientboard/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// ParseDialect accepts the driver names users type in config.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unknown database driver: %s", driver)
	}
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
}

var _ gateway.Gateway = (*Store)(nil)

// Open connects and migrates. For sqlite dsn is a file path; its directory is created.
func Open(ctx context.Context, dialect Dialect, dsn string, log zerolog.Logger) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case SQLite:
		if dsn == "" {
			return nil, errors.New("sqlite: empty path")
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if dsn == ":memory:" {
			// Every new connection to :memory: is a fresh empty database.
			db.SetMaxOpenConns(1)
		}
	case Postgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown dialect: %s", dialect)
	}
	s := &Store{db: db, dialect: dialect, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func sqliteDSN(path string) string {
	q := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		q = append(q, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
                        id ` + idCol + `,
                        tags_json TEXT NOT NULL DEFAULT '{}'
                );`,
		`CREATE TABLE IF NOT EXISTS items (
                        id ` + idCol + `,
                        patient_id BIGINT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
                        column_name TEXT NOT NULL,
                        fields_json TEXT NOT NULL,
                        tags_json TEXT
                );`,
		`CREATE INDEX IF NOT EXISTS idx_items_patient ON items(patient_id, column_name);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for Postgres.
func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func encodeTags(t model.Tags) (sql.NullString, error) {
	if t == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeTags(ns sql.NullString) (model.Tags, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var t model.Tags
	if err := json.Unmarshal([]byte(ns.String), &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]model.Patient, error) {
	return s.loadPatients(ctx, s.db, nil)
}

func (s *Store) GetPatient(ctx context.Context, id int64) (model.Patient, error) {
	ps, err := s.loadPatients(ctx, s.db, []int64{id})
	if err != nil {
		return model.Patient{}, err
	}
	if len(ps) == 0 {
		return model.Patient{}, gateway.NotFound("patient", id)
	}
	return ps[0], nil
}

// loadPatients reads the given patients (all when ids is nil), ordered by id.
func (s *Store) loadPatients(ctx context.Context, q querier, ids []int64) ([]model.Patient, error) {
	where := ""
	args := make([]any, 0, len(ids))
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		where = " WHERE id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	rows, err := q.QueryContext(ctx, s.rebind("SELECT id, tags_json FROM patients"+where+" ORDER BY id"), args...)
	if err != nil {
		return nil, fmt.Errorf("select patients: %w", err)
	}
	var out []model.Patient
	index := map[int64]int{}
	for rows.Next() {
		var (
			id   int64
			tags sql.NullString
		)
		if err := rows.Scan(&id, &tags); err != nil {
			_ = rows.Close()
			return nil, err
		}
		t, err := decodeTags(tags)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("patient %d tags: %w", id, err)
		}
		if t == nil {
			t = model.Tags{}
		}
		index[id] = len(out)
		out = append(out, model.Patient{ID: id, Tags: t, Columns: map[string][]model.Item{}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(out) == 0 {
		return nil, nil
	}

	itemWhere := ""
	if ids != nil {
		itemWhere = " WHERE patient_id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	}
	rows, err = q.QueryContext(ctx, s.rebind("SELECT id, patient_id, column_name, fields_json, tags_json FROM items"+itemWhere+" ORDER BY id"), args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			it         model.Item
			column     string
			fieldsJSON string
			tags       sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.PatientID, &column, &fieldsJSON, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &it.Fields); err != nil {
			return nil, fmt.Errorf("item %d fields: %w", it.ID, err)
		}
		if it.Fields == nil {
			it.Fields = map[string]string{}
		}
		if it.Tags, err = decodeTags(tags); err != nil {
			return nil, fmt.Errorf("item %d tags: %w", it.ID, err)
		}
		i, ok := index[it.PatientID]
		if !ok {
			continue
		}
		p := &out[i]
		p.SetItems(column, append(p.Items(column), it))
	}
	return out, rows.Err()
}

// Search matches the hospital number exactly and the name as a case-insensitive substring.
func (s *Store) Search(ctx context.Context, c board.Criteria) ([]model.Patient, error) {
	number := strings.TrimSpace(c.HospitalNumber)
	name := strings.ToLower(strings.TrimSpace(c.Name))
	if number == "" && name == "" {
		return nil, nil
	}
	all, err := s.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Patient
	for _, p := range all {
		d := p.Demographics()
		if number != "" && !strings.EqualFold(strings.TrimSpace(d.HospitalNumber), number) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(d.Name), name) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CreatePatient adds a patient with its demographics and location. A patient whose hospital
// number is already known is updated in place and returned instead.
func (s *Store) CreatePatient(ctx context.Context, np model.NewPatient) (model.Patient, error) {
	tags := np.Tags.Clone()
	for k, v := range np.Location.Tags {
		tags[k] = v
	}
	loc := np.Location.Clone()
	loc.Tags = tags.Clone()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Patient{}, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.patientByNumber(ctx, tx, np.Demographics.Get(model.FieldHospitalNumber))
	if err != nil {
		return model.Patient{}, err
	}
	if id == 0 {
		if id, err = s.insertPatient(ctx, tx, 0, tags); err != nil {
			return model.Patient{}, err
		}
		demo := np.Demographics.Clone()
		demo.PatientID, loc.PatientID = id, id
		if _, err := s.insertItem(ctx, tx, 0, model.ColumnDemographics, demo); err != nil {
			return model.Patient{}, err
		}
		if _, err := s.insertItem(ctx, tx, 0, model.ColumnLocation, loc); err != nil {
			return model.Patient{}, err
		}
	} else {
		s.log.Debug().Int64("patient", id).Msg("hospital number already known, updating")
		if err := s.replaceSingleton(ctx, tx, id, model.ColumnDemographics, np.Demographics); err != nil {
			return model.Patient{}, err
		}
		if err := s.replaceSingleton(ctx, tx, id, model.ColumnLocation, loc); err != nil {
			return model.Patient{}, err
		}
		if err := s.setPatientTags(ctx, tx, id, tags); err != nil {
			return model.Patient{}, err
		}
	}
	ps, err := s.loadPatients(ctx, tx, []int64{id})
	if err != nil {
		return model.Patient{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Patient{}, err
	}
	if len(ps) == 0 {
		return model.Patient{}, gateway.NotFound("patient", id)
	}
	return ps[0], nil
}

func (s *Store) patientByNumber(ctx context.Context, q querier, number string) (int64, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, nil
	}
	rows, err := q.QueryContext(ctx, s.rebind("SELECT patient_id, fields_json FROM items WHERE column_name = ? ORDER BY id"), model.ColumnDemographics)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			pid    int64
			fields string
		)
		if err := rows.Scan(&pid, &fields); err != nil {
			return 0, err
		}
		var f map[string]string
		if err := json.Unmarshal([]byte(fields), &f); err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f[model.FieldHospitalNumber]), number) {
			return pid, nil
		}
	}
	return 0, rows.Err()
}

func (s *Store) insertPatient(ctx context.Context, q querier, id int64, tags model.Tags) (int64, error) {
	tj, err := encodeTags(tags)
	if err != nil {
		return 0, err
	}
	if !tj.Valid {
		tj = sql.NullString{String: "{}", Valid: true}
	}
	var out int64
	if id != 0 {
		err = q.QueryRowContext(ctx, s.rebind("INSERT INTO patients (id, tags_json) VALUES (?, ?) RETURNING id"), id, tj.String).Scan(&out)
	} else {
		err = q.QueryRowContext(ctx, s.rebind("INSERT INTO patients (tags_json) VALUES (?) RETURNING id"), tj.String).Scan(&out)
	}
	if err != nil {
		return 0, fmt.Errorf("insert patient: %w", err)
	}
	return out, nil
}

func (s *Store) insertItem(ctx context.Context, q querier, id int64, column string, it model.Item) (int64, error) {
	fields := it.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	fj, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}
	tj, err := encodeTags(it.Tags)
	if err != nil {
		return 0, err
	}
	var out int64
	if id != 0 {
		err = q.QueryRowContext(ctx,
			s.rebind("INSERT INTO items (id, patient_id, column_name, fields_json, tags_json) VALUES (?, ?, ?, ?, ?) RETURNING id"),
			id, it.PatientID, column, string(fj), tj).Scan(&out)
	} else {
		err = q.QueryRowContext(ctx,
			s.rebind("INSERT INTO items (patient_id, column_name, fields_json, tags_json) VALUES (?, ?, ?, ?) RETURNING id"),
			it.PatientID, column, string(fj), tj).Scan(&out)
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s item: %w", column, err)
	}
	return out, nil
}

func (s *Store) replaceSingleton(ctx context.Context, q querier, patientID int64, column string, it model.Item) error {
	if _, err := q.ExecContext(ctx, s.rebind("DELETE FROM items WHERE patient_id = ? AND column_name = ?"), patientID, column); err != nil {
		return err
	}
	it = it.Clone()
	it.PatientID = patientID
	_, err := s.insertItem(ctx, q, 0, column, it)
	return err
}

func (s *Store) setPatientTags(ctx context.Context, q querier, id int64, tags model.Tags) error {
	tj, err := encodeTags(tags.Clone())
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, s.rebind("UPDATE patients SET tags_json = ? WHERE id = ?"), tj.String, id)
	return err
}

func (s *Store) patientExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, s.rebind("SELECT 1 FROM patients WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.NotFound("patient", id)
	}
	return err
}

func (s *Store) CreateItem(ctx context.Context, column string, it model.Item) (model.Item, error) {
	if strings.TrimSpace(column) == "" {
		return model.Item{}, gateway.Invalid("missing column")
	}
	if err := s.patientExists(ctx, s.db, it.PatientID); err != nil {
		return model.Item{}, err
	}
	id, err := s.insertItem(ctx, s.db, 0, column, it)
	if err != nil {
		return model.Item{}, err
	}
	out := it.Clone()
	out.ID = id
	out.Ref = ""
	return out, nil
}

func (s *Store) UpdateItem(ctx context.Context, column string, it model.Item) (model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Item{}, err
	}
	defer func() { _ = tx.Rollback() }()
	out, err := s.updateItem(ctx, tx, column, it)
	if err != nil {
		return model.Item{}, err
	}
	return out, tx.Commit()
}

// updateItem rewrites an item. Location updates also carry the patient's tags.
func (s *Store) updateItem(ctx context.Context, q querier, column string, it model.Item) (model.Item, error) {
	fields := it.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	fj, err := json.Marshal(fields)
	if err != nil {
		return model.Item{}, err
	}
	tj, err := encodeTags(it.Tags)
	if err != nil {
		return model.Item{}, err
	}
	res, err := q.ExecContext(ctx,
		s.rebind("UPDATE items SET fields_json = ?, tags_json = ? WHERE id = ? AND column_name = ?"),
		string(fj), tj, it.ID, column)
	if err != nil {
		return model.Item{}, fmt.Errorf("update %s item: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Item{}, gateway.NotFound(column, it.ID)
	}
	var patientID int64
	if err := q.QueryRowContext(ctx, s.rebind("SELECT patient_id FROM items WHERE id = ?"), it.ID).Scan(&patientID); err != nil {
		return model.Item{}, err
	}
	if column == model.ColumnLocation && it.Tags != nil {
		if err := s.setPatientTags(ctx, q, patientID, it.Tags); err != nil {
			return model.Item{}, err
		}
	}
	out := it.Clone()
	out.PatientID = patientID
	out.Ref = ""
	return out, nil
}

func (s *Store) DeleteItem(ctx context.Context, column string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM items WHERE id = ? AND column_name = ?"), id, column)
	if err != nil {
		return fmt.Errorf("delete %s item: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return gateway.NotFound(column, id)
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, it model.Item) (model.Item, error) {
	return s.UpdateItem(ctx, model.ColumnLocation, it)
}

// Seed imports patients keeping their ids. Items without an id get a fresh one.
func (s *Store) Seed(ctx context.Context, patients []model.Patient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sorted := append([]model.Patient(nil), patients...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, p := range sorted {
		tags := p.Tags
		if tags == nil {
			tags = p.Location().Tags
		}
		id, err := s.insertPatient(ctx, tx, p.ID, tags)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(p.Columns))
		for name := range p.Columns {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, it := range p.Columns[name] {
				it.PatientID = id
				if _, err := s.insertItem(ctx, tx, it.ID, name, it); err != nil {
					return err
				}
			}
		}
	}
	if s.dialect == Postgres {
		for _, table := range []string{"patients", "items"} {
			q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))", table, table)
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("reset %s sequence: %w", table, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info().Int("patients", len(patients)).Msg("seeded")
	return nil
}
