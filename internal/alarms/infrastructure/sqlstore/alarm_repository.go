package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/database"
)

const alarmColumns = `id, detected_at, measurement_name, equipment, alarm_type, observed_value,
	reference_min, reference_max, unit, duration_minutes, priority, status, resolved_at, resolved_by`

// AlarmRepository reads and transitions alarms in a relational table.
type AlarmRepository struct {
	db      *sql.DB
	dialect database.Dialect
	table   string
	labels  StatusLabels
}

// Option customizes the repository.
type Option func(*AlarmRepository)

// WithTable overrides the alarm table name.
func WithTable(table string) Option {
	return func(r *AlarmRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// WithStatusLabels overrides the stored status values.
func WithStatusLabels(labels StatusLabels) Option {
	return func(r *AlarmRepository) {
		r.labels = labels
	}
}

// NewAlarmRepository constructs a repository.
func NewAlarmRepository(db *sql.DB, dialect database.Dialect, opts ...Option) (*AlarmRepository, error) {
	if db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	repo := &AlarmRepository{
		db:      db,
		dialect: dialect,
		table:   DefaultTable,
		labels:  DefaultStatusLabels(),
	}
	for _, opt := range opts {
		opt(repo)
	}
	if err := ValidateIdentifier(repo.table); err != nil {
		return nil, err
	}
	if err := repo.labels.Validate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Table returns the table the repository operates on.
func (r *AlarmRepository) Table() string {
	if r == nil {
		return ""
	}
	return r.table
}

// ListOpen returns open alarms on one side of cutoff in display order.
func (r *AlarmRepository) ListOpen(ctx context.Context, window alarms.Window, cutoff time.Time) ([]alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	var cmp string
	switch window {
	case alarms.WindowRecent:
		cmp = ">="
	case alarms.WindowOlder:
		cmp = "<"
	default:
		return nil, &alarms.ValidationError{Field: "window", Reason: fmt.Sprintf("unknown window %q", window)}
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status = ? AND detected_at %s ?
ORDER BY priority DESC, detected_at DESC, id DESC`, alarmColumns, r.table, cmp)

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), r.labels.Open, cutoff.UTC())
	if err != nil {
		return nil, alarms.Unavailable("list open", err)
	}
	defer rows.Close()

	result := make([]alarms.Alarm, 0)
	for rows.Next() {
		alarm, err := r.scanAlarm(rows)
		if err != nil {
			return nil, alarms.Unavailable("list open", err)
		}
		result = append(result, *alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, alarms.Unavailable("list open", err)
	}
	return result, nil
}

// Transition moves an open alarm to a terminal status in one conditional
// update and returns the number of affected rows.
func (r *AlarmRepository) Transition(ctx context.Context, req alarms.TransitionRequest, resolvedAt time.Time) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if r == nil || r.db == nil {
		return 0, errors.New("alarm repo: nil db")
	}
	req = req.Normalized()
	query := fmt.Sprintf(`
UPDATE %s
SET status = ?, resolved_at = ?, resolved_by = ?
WHERE id = ? AND status = ?`, r.table)
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		r.labels.Label(req.Status),
		resolvedAt.UTC(),
		req.OperatorID,
		req.AlarmID,
		r.labels.Open,
	)
	if err != nil {
		return 0, alarms.Unavailable("transition", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, alarms.Unavailable("transition", err)
	}
	return affected, nil
}

// GetByID fetches an alarm by id. A missing row yields nil, nil.
func (r *AlarmRepository) GetByID(ctx context.Context, id int64) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, alarmColumns, r.table)
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id)
	alarm, err := r.scanAlarm(row)
	if err != nil {
		return nil, alarms.Unavailable("get", err)
	}
	return alarm, nil
}

// Create inserts an alarm and assigns its id when zero.
func (r *AlarmRepository) Create(ctx context.Context, alarm *alarms.Alarm) error {
	if r == nil || r.db == nil {
		return errors.New("alarm repo: nil db")
	}
	if alarm == nil {
		return errors.New("alarm repo: nil alarm")
	}
	if alarm.MeasurementName == "" || alarm.AlarmType == "" || alarm.DetectedAt.IsZero() {
		return errors.New("alarm repo: missing fields")
	}
	if alarm.Status == "" {
		alarm.Status = alarms.StatusOpen
	}
	args := []any{
		alarm.DetectedAt.UTC(),
		alarm.MeasurementName,
		alarm.Equipment,
		alarm.AlarmType,
		alarm.ObservedValue,
		nullableFloat(alarm.ReferenceMin),
		nullableFloat(alarm.ReferenceMax),
		alarm.Unit,
		alarm.DurationMinutes,
		alarm.Priority,
		r.labels.Label(alarm.Status),
		nullableTime(alarm.ResolvedAt),
		nullableString(alarm.ResolvedBy),
	}
	columns := `detected_at, measurement_name, equipment, alarm_type, observed_value,
	reference_min, reference_max, unit, duration_minutes, priority, status, resolved_at, resolved_by`
	values := "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	if alarm.ID > 0 {
		columns = "id, " + columns
		values = "?, " + values
		args = append([]any{alarm.ID}, args...)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, r.table, columns, values)

	if r.dialect.IsPostgres() {
		var id int64
		if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return alarms.Unavailable("create", err)
		}
		alarm.ID = id
		return nil
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return alarms.Unavailable("create", err)
	}
	if alarm.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return alarms.Unavailable("create", err)
		}
		alarm.ID = id
	}
	return nil
}

// CountByStatus groups alarms detected in [from, to) by status.
func (r *AlarmRepository) CountByStatus(ctx context.Context, from, to time.Time) ([]alarms.StatusCount, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT status, COUNT(*)
FROM %s
WHERE detected_at >= ? AND detected_at < ?
GROUP BY status`, r.table)
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), from.UTC(), to.UTC())
	if err != nil {
		return nil, alarms.Unavailable("count by status", err)
	}
	defer rows.Close()

	var result []alarms.StatusCount
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, alarms.Unavailable("count by status", err)
		}
		result = append(result, alarms.StatusCount{Status: r.labels.Status(label), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, alarms.Unavailable("count by status", err)
	}
	return result, nil
}

// CountByCause groups alarms detected in [from, to) by measurement and type.
func (r *AlarmRepository) CountByCause(ctx context.Context, from, to time.Time) ([]alarms.CauseCount, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT measurement_name, alarm_type, COUNT(*)
FROM %s
WHERE detected_at >= ? AND detected_at < ?
GROUP BY measurement_name, alarm_type`, r.table)
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), from.UTC(), to.UTC())
	if err != nil {
		return nil, alarms.Unavailable("count by cause", err)
	}
	defer rows.Close()

	var result []alarms.CauseCount
	for rows.Next() {
		var c alarms.CauseCount
		if err := rows.Scan(&c.MeasurementName, &c.AlarmType, &c.Count); err != nil {
			return nil, alarms.Unavailable("count by cause", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, alarms.Unavailable("count by cause", err)
	}
	return result, nil
}

// CountOpen returns the number of open alarms.
func (r *AlarmRepository) CountOpen(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alarm repo: nil db")
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = ?`, r.table)
	var count int64
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), r.labels.Open).Scan(&count); err != nil {
		return 0, alarms.Unavailable("count open", err)
	}
	return count, nil
}

type alarmScanner interface {
	Scan(dest ...any) error
}

func (r *AlarmRepository) scanAlarm(row alarmScanner) (*alarms.Alarm, error) {
	var alarm alarms.Alarm
	var equipment sql.NullString
	var unit sql.NullString
	var status string
	var refMin sql.NullFloat64
	var refMax sql.NullFloat64
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString
	if err := row.Scan(
		&alarm.ID,
		&alarm.DetectedAt,
		&alarm.MeasurementName,
		&equipment,
		&alarm.AlarmType,
		&alarm.ObservedValue,
		&refMin,
		&refMax,
		&unit,
		&alarm.DurationMinutes,
		&alarm.Priority,
		&status,
		&resolvedAt,
		&resolvedBy,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alarm.DetectedAt = alarm.DetectedAt.UTC()
	alarm.Equipment = equipment.String
	alarm.Unit = unit.String
	alarm.Status = r.labels.Status(status)
	if refMin.Valid {
		v := refMin.Float64
		alarm.ReferenceMin = &v
	}
	if refMax.Valid {
		v := refMax.Float64
		alarm.ReferenceMax = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		alarm.ResolvedAt = &t
	}
	if resolvedBy.Valid {
		s := resolvedBy.String
		alarm.ResolvedBy = &s
	}
	return &alarm, nil
}

func nullableTime(value *time.Time) sql.NullTime {
	if value == nil || value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
