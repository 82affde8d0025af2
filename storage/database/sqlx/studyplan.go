package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
)

type (
	scheduleRow struct {
		StudentID string         `db:"student_id"`
		Blocks    types.JSONText `db:"blocks"`
		UpdatedAt time.Time      `db:"updated_at"`
	}

	backlogRow struct {
		Scope     string         `db:"scope"`
		Courses   types.JSONText `db:"courses"`
		UpdatedAt time.Time      `db:"updated_at"`
	}

	planRow struct {
		StudentID   string         `db:"student_id"`
		AnchorDate  time.Time      `db:"anchor_date"`
		HorizonDays int            `db:"horizon_days"`
		Entries     types.JSONText `db:"entries"`
		Residual    types.JSONText `db:"residual"`
		GeneratedAt time.Time      `db:"generated_at"`
	}
)

func jsonText(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}

type studyplanRepository struct {
	exec core.DBExecutor
}

var _ studyplan.Repository = (*studyplanRepository)(nil) // interface compliance check

func NewStudyPlanRepository(exec core.DBExecutor) *studyplanRepository {
	return &studyplanRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to studyplan.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return studyplan.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUnknownStudentErr maps a psql foreign key violation (no such student) to studyplan.ErrNotFound
func trapUnknownStudentErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return studyplan.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (repo *studyplanRepository) GetSchedule(ctx context.Context, studentID string) (studyplan.Schedule, error) {
	if !isUUID(studentID) {
		return studyplan.Schedule{}, studyplan.ErrNotFound
	}
	var row scheduleRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`SELECT student_id, blocks, updated_at FROM schedule WHERE student_id = $1`, studentID)
	if err != nil {
		return studyplan.Schedule{}, trapNoRowsErr(err, "finding schedule")
	}

	sched := studyplan.Schedule{StudentID: row.StudentID, UpdatedAt: row.UpdatedAt.UTC()}
	if err = row.Blocks.Unmarshal(&sched.Blocks); err != nil {
		return studyplan.Schedule{}, errors.Wrap(err, "decoding schedule blocks")
	}
	return sched, nil
}

func (repo *studyplanRepository) SaveSchedule(ctx context.Context, sched studyplan.Schedule) error {
	if !isUUID(sched.StudentID) {
		return studyplan.ErrNotFound
	}
	blocks := sched.Blocks
	if blocks == nil {
		blocks = []studyplan.ScheduleBlock{}
	}
	js, err := jsonText(blocks)
	if err != nil {
		return errors.Wrap(err, "encoding schedule blocks")
	}
	_, err = sqlx.NamedExecContext(ctx, repo.exec,
		`INSERT INTO schedule (student_id, blocks, updated_at) VALUES (:student_id, :blocks, :updated_at)
		ON CONFLICT (student_id) DO UPDATE SET blocks = EXCLUDED.blocks, updated_at = EXCLUDED.updated_at`,
		scheduleRow{StudentID: sched.StudentID, Blocks: js, UpdatedAt: sched.UpdatedAt.UTC()},
	)
	if err != nil {
		return trapUnknownStudentErr(err, "saving schedule")
	}
	return nil
}

func (repo *studyplanRepository) ListScheduledStudents(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, repo.exec, &ids, `SELECT student_id FROM schedule ORDER BY student_id`); err != nil {
		return nil, errors.Wrap(err, "listing scheduled students")
	}
	return ids, nil
}

func (repo *studyplanRepository) GetBacklogs(ctx context.Context, scope string) (studyplan.Backlogs, error) {
	var row backlogRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `SELECT scope, courses, updated_at FROM backlog WHERE scope = $1`, scope)
	if err != nil {
		return nil, trapNoRowsErr(err, "finding backlogs")
	}

	bl := make(studyplan.Backlogs)
	if err = row.Courses.Unmarshal(&bl); err != nil {
		return nil, errors.Wrap(err, "decoding backlogs")
	}
	return bl, nil
}

func (repo *studyplanRepository) SaveBacklogs(ctx context.Context, scope string, bl studyplan.Backlogs) error {
	if bl == nil {
		bl = studyplan.Backlogs{}
	}
	js, err := jsonText(bl)
	if err != nil {
		return errors.Wrap(err, "encoding backlogs")
	}
	_, err = sqlx.NamedExecContext(ctx, repo.exec,
		`INSERT INTO backlog (scope, courses, updated_at) VALUES (:scope, :courses, :updated_at)
		ON CONFLICT (scope) DO UPDATE SET courses = EXCLUDED.courses, updated_at = EXCLUDED.updated_at`,
		backlogRow{Scope: scope, Courses: js, UpdatedAt: core.NowFunc().UTC()},
	)
	return errors.Wrap(err, "saving backlogs")
}

func (repo *studyplanRepository) DeleteBacklogs(ctx context.Context, scope string) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM backlog WHERE scope = $1`, scope)
	if err != nil {
		return errors.Wrap(err, "deleting backlogs")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return studyplan.ErrNotFound
	}
	return nil
}

func (repo *studyplanRepository) GetPlan(ctx context.Context, studentID string) (studyplan.Plan, error) {
	if !isUUID(studentID) {
		return studyplan.Plan{}, studyplan.ErrNotFound
	}
	var row planRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`SELECT student_id, anchor_date, horizon_days, entries, residual, generated_at FROM plan WHERE student_id = $1`,
		studentID)
	if err != nil {
		return studyplan.Plan{}, trapNoRowsErr(err, "finding plan")
	}

	plan := studyplan.Plan{
		StudentID:   row.StudentID,
		AnchorDate:  row.AnchorDate.Format(studyplan.DateLayout),
		HorizonDays: row.HorizonDays,
		GeneratedAt: row.GeneratedAt.UTC(),
	}
	if err = row.Entries.Unmarshal(&plan.Entries); err != nil {
		return studyplan.Plan{}, errors.Wrap(err, "decoding plan entries")
	}
	if err = row.Residual.Unmarshal(&plan.Residual); err != nil {
		return studyplan.Plan{}, errors.Wrap(err, "decoding plan residual")
	}
	return plan, nil
}

func (repo *studyplanRepository) SavePlan(ctx context.Context, plan studyplan.Plan) error {
	if !isUUID(plan.StudentID) {
		return studyplan.ErrNotFound
	}
	anchor, err := time.Parse(studyplan.DateLayout, plan.AnchorDate)
	if err != nil {
		return errors.Wrap(err, "parsing anchor date")
	}
	entries, err := jsonText(plan.Entries)
	if err != nil {
		return errors.Wrap(err, "encoding plan entries")
	}
	residual, err := jsonText(plan.Residual)
	if err != nil {
		return errors.Wrap(err, "encoding plan residual")
	}

	_, err = sqlx.NamedExecContext(ctx, repo.exec,
		`INSERT INTO plan (student_id, anchor_date, horizon_days, entries, residual, generated_at)
		VALUES (:student_id, :anchor_date, :horizon_days, :entries, :residual, :generated_at)
		ON CONFLICT (student_id) DO UPDATE SET
			anchor_date = EXCLUDED.anchor_date, horizon_days = EXCLUDED.horizon_days,
			entries = EXCLUDED.entries, residual = EXCLUDED.residual, generated_at = EXCLUDED.generated_at`,
		planRow{
			StudentID:   plan.StudentID,
			AnchorDate:  anchor,
			HorizonDays: plan.HorizonDays,
			Entries:     entries,
			Residual:    residual,
			GeneratedAt: plan.GeneratedAt.UTC(),
		},
	)
	if err != nil {
		return trapUnknownStudentErr(err, "saving plan")
	}
	return nil
}
