package boltdb

import (
	"context"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/ushauri/core/studyplan"
)

type studyplanRepository struct {
	store *Store
}

var _ studyplan.Repository = (*studyplanRepository)(nil) // interface compliance check

func NewStudyPlanRepository(store *Store) *studyplanRepository {
	return &studyplanRepository{store: store}
}

// load reads bucket/key into v, mapping missing keys to studyplan.ErrNotFound.
func (repo *studyplanRepository) load(bucket []byte, key string, v interface{}) error {
	var found bool
	err := repo.store.db.View(func(tx *bbolt.Tx) (err error) {
		found, err = get(tx, bucket, key, v)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		return studyplan.ErrNotFound
	}
	return nil
}

func (repo *studyplanRepository) save(bucket []byte, key string, v interface{}) error {
	return repo.store.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucket, key, v)
	})
}

func (repo *studyplanRepository) GetSchedule(_ context.Context, studentID string) (studyplan.Schedule, error) {
	var sched studyplan.Schedule
	if err := repo.load(bucketSchedules, studentID, &sched); err != nil {
		return studyplan.Schedule{}, err
	}
	return sched, nil
}

func (repo *studyplanRepository) SaveSchedule(_ context.Context, sched studyplan.Schedule) error {
	return errors.Wrap(repo.save(bucketSchedules, sched.StudentID, sched), "saving schedule")
}

// ListScheduledStudents returns the student ids in key order.
func (repo *studyplanRepository) ListScheduledStudents(_ context.Context) ([]string, error) {
	var ids []string
	err := repo.store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSchedules).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing scheduled students")
	}
	return ids, nil
}

func (repo *studyplanRepository) GetBacklogs(_ context.Context, scope string) (studyplan.Backlogs, error) {
	bl := make(studyplan.Backlogs)
	if err := repo.load(bucketBacklogs, scope, &bl); err != nil {
		return nil, err
	}
	return bl, nil
}

func (repo *studyplanRepository) SaveBacklogs(_ context.Context, scope string, bl studyplan.Backlogs) error {
	if bl == nil {
		bl = studyplan.Backlogs{}
	}
	return errors.Wrap(repo.save(bucketBacklogs, scope, bl), "saving backlogs")
}

func (repo *studyplanRepository) DeleteBacklogs(_ context.Context, scope string) error {
	return repo.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBacklogs)
		if b.Get([]byte(scope)) == nil {
			return studyplan.ErrNotFound
		}
		return errors.Wrap(b.Delete([]byte(scope)), "deleting backlogs")
	})
}

func (repo *studyplanRepository) GetPlan(_ context.Context, studentID string) (studyplan.Plan, error) {
	var plan studyplan.Plan
	if err := repo.load(bucketPlans, studentID, &plan); err != nil {
		return studyplan.Plan{}, err
	}
	return plan, nil
}

func (repo *studyplanRepository) SavePlan(_ context.Context, plan studyplan.Plan) error {
	return errors.Wrap(repo.save(bucketPlans, plan.StudentID, plan), "saving plan")
}
