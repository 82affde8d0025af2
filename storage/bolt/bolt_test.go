package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
	"github.com/trezcool/ushauri/storage/storagetest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUserRepository(t *testing.T) {
	storagetest.UserRepository(t, NewUserRepository(openStore(t)))
}

func TestStudyPlanRepository(t *testing.T) {
	storagetest.StudyPlanRepository(t, NewStudyPlanRepository(openStore(t)), "student-1", "student-2")
}

func TestDeleteUserDropsStudyRecords(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	users := NewUserRepository(store)
	plans := NewStudyPlanRepository(store)

	usr, err := users.CreateUser(ctx, user.User{Name: "Neema", Username: "neemak", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	require.NoError(t, plans.SaveSchedule(ctx, studyplan.Schedule{StudentID: usr.ID}))
	require.NoError(t, plans.SaveBacklogs(ctx, usr.ID, studyplan.Backlogs{"Math": {{Name: "Algebra", Minutes: 10}}}))
	require.NoError(t, plans.SavePlan(ctx, studyplan.Plan{StudentID: usr.ID, AnchorDate: "2024-01-01"}))

	cnt, err := users.DeleteUsersByID(ctx, []string{usr.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	_, err = plans.GetSchedule(ctx, usr.ID)
	assert.Equal(t, studyplan.ErrNotFound, err)
	_, err = plans.GetBacklogs(ctx, usr.ID)
	assert.Equal(t, studyplan.ErrNotFound, err)
	_, err = plans.GetPlan(ctx, usr.ID)
	assert.Equal(t, studyplan.ErrNotFound, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewStudyPlanRepository(store).SaveBacklogs(ctx, studyplan.CatalogScope, studyplan.Backlogs{"Math": {{Name: "Algebra", Minutes: 90}}}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	bl, err := NewStudyPlanRepository(store).GetBacklogs(ctx, studyplan.CatalogScope)
	require.NoError(t, err)
	assert.Equal(t, 90, bl.Total("Math"))
}
