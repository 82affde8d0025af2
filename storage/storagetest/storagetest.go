// Package storagetest holds the behaviour every repository implementation must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
)

func newUser(name, uname, email string, roles ...string) user.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return user.User{
		Name:         name,
		Username:     uname,
		Email:        email,
		IsActive:     true,
		Roles:        roles,
		PasswordHash: []byte("hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserRepository runs the user.Repository contract on an empty repository.
func UserRepository(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	amani, err := repo.CreateUser(ctx, newUser("Amani Wekesa", "amaniw", "amani@ushauri.test", user.RoleStudent))
	require.NoError(t, err)
	require.NotEmpty(t, amani.ID)
	time.Sleep(2 * time.Millisecond)
	baraka, err := repo.CreateUser(ctx, newUser("Baraka Otieno", "barakao", "", user.RoleCounselor))
	require.NoError(t, err)

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "amaniw", "", nil))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "someone", "amani@ushauri.test", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "amaniw", "amani@ushauri.test", []user.User{amani}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "someone", "", nil))
	})

	t.Run("get", func(t *testing.T) {
		for name, filter := range map[string]user.GetFilter{
			"id":                {ID: amani.ID},
			"username":          {Username: "amaniw"},
			"email":             {Email: "amani@ushauri.test"},
			"username or email": {UsernameOrEmail: []string{"amani@ushauri.test"}},
		} {
			usr, err := repo.GetUser(ctx, filter)
			if assert.NoError(t, err, name) {
				assert.Equal(t, amani.ID, usr.ID, name)
				assert.Equal(t, []byte("hash"), usr.PasswordHash, name)
			}
		}
		_, err := repo.GetUser(ctx, user.GetFilter{ID: "3f0ba9d4-1d5c-4d4e-8a8e-0c3a2b0b7f11"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{""}})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, amani.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{"counselor:"}}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, baraka.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Search: "OTIENO"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, baraka.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "name", Ascending: false}})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, baraka.ID, users[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		upd := amani
		upd.Name = "Amani W."
		upd.IsActive = false
		upd.LastLogin = time.Now().UTC().Truncate(time.Millisecond)
		_, err := repo.UpdateUser(ctx, upd)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: amani.ID})
		require.NoError(t, err)
		assert.Equal(t, "Amani W.", got.Name)
		assert.False(t, got.IsActive)
		assert.True(t, upd.LastLogin.Equal(got.LastLogin))

		ghost := upd
		ghost.ID = "3f0ba9d4-1d5c-4d4e-8a8e-0c3a2b0b7f11"
		_, err = repo.UpdateUser(ctx, ghost)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := repo.DeleteUsersByID(ctx, []string{baraka.ID, "3f0ba9d4-1d5c-4d4e-8a8e-0c3a2b0b7f11"})
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
		_, err = repo.GetUser(ctx, user.GetFilter{ID: baraka.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

// StudyPlanRepository runs the studyplan.Repository contract on an empty repository.
// studentIDs are ids of existing students (at least 2).
func StudyPlanRepository(t *testing.T, repo studyplan.Repository, studentIDs ...string) {
	require.GreaterOrEqual(t, len(studentIDs), 2)
	ctx := context.Background()
	s1, s2 := studentIDs[0], studentIDs[1]

	t.Run("missing records", func(t *testing.T) {
		_, err := repo.GetSchedule(ctx, s1)
		assert.Equal(t, studyplan.ErrNotFound, err)
		_, err = repo.GetBacklogs(ctx, studyplan.CatalogScope)
		assert.Equal(t, studyplan.ErrNotFound, err)
		_, err = repo.GetPlan(ctx, s1)
		assert.Equal(t, studyplan.ErrNotFound, err)
		assert.Equal(t, studyplan.ErrNotFound, repo.DeleteBacklogs(ctx, s1))
	})

	t.Run("schedules", func(t *testing.T) {
		sched := studyplan.Schedule{
			StudentID: s1,
			Blocks: []studyplan.ScheduleBlock{
				{ID: "b1", DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00", Course: "Math"},
				{ID: "b2", DayOfWeek: 2, StartTime: "14:00", EndTime: "15:30", Course: "Physics"},
			},
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, repo.SaveSchedule(ctx, sched))
		require.NoError(t, repo.SaveSchedule(ctx, studyplan.Schedule{StudentID: s2, Blocks: []studyplan.ScheduleBlock{}, UpdatedAt: sched.UpdatedAt}))

		got, err := repo.GetSchedule(ctx, s1)
		require.NoError(t, err)
		assert.Equal(t, sched.Blocks, got.Blocks)
		assert.True(t, sched.UpdatedAt.Equal(got.UpdatedAt))

		// replace
		sched.Blocks = sched.Blocks[:1]
		require.NoError(t, repo.SaveSchedule(ctx, sched))
		got, err = repo.GetSchedule(ctx, s1)
		require.NoError(t, err)
		assert.Len(t, got.Blocks, 1)

		ids, err := repo.ListScheduledStudents(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{s1, s2}, ids)
	})

	t.Run("backlogs", func(t *testing.T) {
		catalog := studyplan.Backlogs{
			"Math":    {{Name: "Algebra", Minutes: 90}, {Name: "Geometry", Minutes: 30}},
			"Physics": {},
		}
		require.NoError(t, repo.SaveBacklogs(ctx, studyplan.CatalogScope, catalog))
		require.NoError(t, repo.SaveBacklogs(ctx, s1, studyplan.Backlogs{"Math": {{Name: "Geometry", Minutes: 10}}}))

		got, err := repo.GetBacklogs(ctx, studyplan.CatalogScope)
		require.NoError(t, err)
		assert.Equal(t, catalog["Math"], got["Math"])
		assert.Empty(t, got["Physics"])
		_, ok := got["Physics"]
		assert.True(t, ok, "courses without topics are kept")

		got, err = repo.GetBacklogs(ctx, s1)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Total("Math"))

		require.NoError(t, repo.DeleteBacklogs(ctx, s1))
		_, err = repo.GetBacklogs(ctx, s1)
		assert.Equal(t, studyplan.ErrNotFound, err)
	})

	t.Run("plans", func(t *testing.T) {
		plan := studyplan.Plan{
			StudentID:   s1,
			AnchorDate:  "2024-01-01",
			HorizonDays: 7,
			Entries: []studyplan.PlanEntry{
				{Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 30},
			},
			Residual:    studyplan.Backlogs{"Math": {{Name: "Algebra", Minutes: 30}}},
			GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, repo.SavePlan(ctx, plan))

		got, err := repo.GetPlan(ctx, s1)
		require.NoError(t, err)
		assert.Equal(t, plan.AnchorDate, got.AnchorDate)
		assert.Equal(t, plan.HorizonDays, got.HorizonDays)
		assert.Equal(t, plan.Entries, got.Entries)
		assert.Equal(t, plan.Residual, got.Residual)
		assert.True(t, plan.GeneratedAt.Equal(got.GeneratedAt))

		// a new run replaces the previous plan
		plan.AnchorDate = "2024-01-08"
		plan.Entries = []studyplan.PlanEntry{}
		require.NoError(t, repo.SavePlan(ctx, plan))
		got, err = repo.GetPlan(ctx, s1)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-08", got.AnchorDate)
		assert.Empty(t, got.Entries)
	})
}
