package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ushauri/core/studyplan"
)

type studyplanRepository struct {
	db *studyplanTables
}

var _ studyplan.Repository = (*studyplanRepository)(nil) // interface compliance check

func NewStudyPlanRepository(db *DB) *studyplanRepository {
	return &studyplanRepository{db: db.studyplan}
}

func copyBlocks(blocks []studyplan.ScheduleBlock) []studyplan.ScheduleBlock {
	return append([]studyplan.ScheduleBlock{}, blocks...)
}

func copyPlan(p studyplan.Plan) studyplan.Plan {
	p.Entries = append([]studyplan.PlanEntry{}, p.Entries...)
	p.Residual = p.Residual.Clone()
	return p
}

func (repo *studyplanRepository) GetSchedule(_ context.Context, studentID string) (studyplan.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sched, ok := repo.db.schedules[studentID]
	if !ok {
		return studyplan.Schedule{}, studyplan.ErrNotFound
	}
	sched.Blocks = copyBlocks(sched.Blocks)
	return sched, nil
}

func (repo *studyplanRepository) SaveSchedule(_ context.Context, sched studyplan.Schedule) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sched.Blocks = copyBlocks(sched.Blocks)
	repo.db.schedules[sched.StudentID] = sched
	return nil
}

func (repo *studyplanRepository) ListScheduledStudents(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, 0, len(repo.db.schedules))
	for id := range repo.db.schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *studyplanRepository) GetBacklogs(_ context.Context, scope string) (studyplan.Backlogs, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	bl, ok := repo.db.backlogs[scope]
	if !ok {
		return nil, studyplan.ErrNotFound
	}
	return bl.Clone(), nil
}

func (repo *studyplanRepository) SaveBacklogs(_ context.Context, scope string, bl studyplan.Backlogs) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.backlogs[scope] = bl.Clone()
	return nil
}

func (repo *studyplanRepository) DeleteBacklogs(_ context.Context, scope string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.backlogs[scope]; !ok {
		return studyplan.ErrNotFound
	}
	delete(repo.db.backlogs, scope)
	return nil
}

func (repo *studyplanRepository) GetPlan(_ context.Context, studentID string) (studyplan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	plan, ok := repo.db.plans[studentID]
	if !ok {
		return studyplan.Plan{}, studyplan.ErrNotFound
	}
	return copyPlan(plan), nil
}

func (repo *studyplanRepository) SavePlan(_ context.Context, plan studyplan.Plan) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.plans[plan.StudentID] = copyPlan(plan)
	return nil
}
