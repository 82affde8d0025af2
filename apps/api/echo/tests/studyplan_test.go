package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/ushauri/apps/api/echo"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
)

type planFixture struct {
	*testApp
	student      user.User
	studentToken string
	otherToken   string
	staffToken   string
	adminToken   string
}

func setupPlans(t *testing.T) planFixture {
	app := setup(t)
	student := app.createUser(t, "Amani", "amaniw", "amani@ushauri.test", []string{user.RoleStudent}, true)
	other := app.createUser(t, "Kamau", "kamau1", "kamau@ushauri.test", []string{user.RoleStudent}, true)
	counselor := app.createUser(t, "Counselor", "counsel", "counselor@ushauri.test", []string{user.RoleCounselor}, true)
	admin := app.createUser(t, "Admin", "admin1", "admin@ushauri.test", []string{user.RoleAdmin}, true)
	return planFixture{
		testApp:      app,
		student:      student,
		studentToken: app.token(t, student),
		otherToken:   app.token(t, other),
		staffToken:   app.token(t, counselor),
		adminToken:   app.token(t, admin),
	}
}

func catalogBody() map[string][]map[string]interface{} {
	return map[string][]map[string]interface{}{
		"Math": {{"name": "Algebra", "minutes": 60}, {"name": "Geometry", "minutes": 120}},
	}
}

func scheduleBody(blocks ...map[string]interface{}) map[string]interface{} {
	if blocks == nil {
		blocks = []map[string]interface{}{}
	}
	return map[string]interface{}{"blocks": blocks}
}

func blockBody(day int, start, end, course string) map[string]interface{} {
	return map[string]interface{}{"day_of_week": day, "start_time": start, "end_time": end, "course": course}
}

func Test_studyPlanApi_catalog(t *testing.T) {
	app := setupPlans(t)

	rec := app.do(t, http.MethodGet, "/v1/backlogs", app.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	checkError(t, app.do(t, http.MethodGet, "/v1/backlogs", "", nil), http.StatusUnauthorized, errMissingToken)
	checkError(t, app.do(t, http.MethodPut, "/v1/backlogs", app.studentToken, catalogBody()), http.StatusForbidden, errForbidden)

	rec = app.do(t, http.MethodPut, "/v1/backlogs", app.staffToken, catalogBody())
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = app.do(t, http.MethodGet, "/v1/backlogs", app.studentToken, nil)
	var got studyplan.Backlogs
	decode(t, rec, &got)
	assert.Equal(t, studyplan.Backlogs{"Math": {{Name: "Algebra", Minutes: 60}, {Name: "Geometry", Minutes: 120}}}, got)

	invalid := map[string][]map[string]interface{}{"Math": {{"name": "", "minutes": -1}}}
	rec = app.do(t, http.MethodPut, "/v1/backlogs", app.adminToken, invalid)
	checkFieldErrors(t, rec, "Math[0].name", "Math[0].minutes")
}

func Test_studyPlanApi_schedule(t *testing.T) {
	app := setupPlans(t)
	path := "/v1/students/" + app.student.ID + "/schedule"

	rec := app.do(t, http.MethodGet, path, app.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sched studyplan.Schedule
	decode(t, rec, &sched)
	assert.Empty(t, sched.Blocks)

	// others do not see the student
	checkError(t, app.do(t, http.MethodGet, path, app.otherToken, nil), http.StatusNotFound, errNotFound)

	overlapping := scheduleBody(blockBody(0, "09:00", "10:00", "Math"), blockBody(0, "09:30", "10:30", "Physics"))
	rec = app.do(t, http.MethodPost, path+"/validate", app.studentToken, overlapping)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.JSONEq(t, `{"overlap": true}`, rec.Body.String())

	fields := checkFieldErrors(t, app.do(t, http.MethodPut, path, app.studentToken, overlapping), "blocks")
	assert.Contains(t, fields["blocks"], "Monday 09:00-10:00 (Math) / 09:30-10:30 (Physics)")

	rec = app.do(t, http.MethodPut, path, app.studentToken, scheduleBody(blockBody(0, "9:00", "10:00", "Math")))
	assert.Equal(t, "start_time must be a 24-hour HH:MM time", checkFieldErrors(t, rec, "start_time")["start_time"])

	valid := scheduleBody(blockBody(0, "09:00", "10:00", "Math"), blockBody(0, "10:00", "10:30", "Physics"))
	rec = app.do(t, http.MethodPost, path+"/validate", app.studentToken, valid)
	assert.JSONEq(t, `{"overlap": false}`, rec.Body.String())

	rec = app.do(t, http.MethodPut, path, app.staffToken, valid)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	decode(t, rec, &sched)
	require.Len(t, sched.Blocks, 2)
	assert.NotEmpty(t, sched.Blocks[0].ID)
	assert.Equal(t, app.student.ID, sched.StudentID)

	rec = app.do(t, http.MethodGet, path, app.studentToken, nil)
	var got studyplan.Schedule
	decode(t, rec, &got)
	assert.Equal(t, sched.Blocks, got.Blocks)
}

func Test_studyPlanApi_plan(t *testing.T) {
	app := setupPlans(t)
	base := "/v1/students/" + app.student.ID

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, "/v1/backlogs", app.staffToken, catalogBody()).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, base+"/schedule", app.studentToken, scheduleBody(blockBody(0, "09:00", "10:30", "Math"))).Code)

	checkError(t, app.do(t, http.MethodGet, base+"/plan", app.studentToken, nil), http.StatusNotFound, errNotFound)

	rec := app.do(t, http.MethodPost, base+"/plan", app.studentToken, map[string]interface{}{"anchor_date": "2024-13-01"})
	checkFieldErrors(t, rec, "anchor_date")

	rec = app.do(t, http.MethodPost, base+"/plan", app.studentToken, map[string]interface{}{
		"anchor_date":     "2024-01-01",
		"horizon_days":    1,
		"consume_backlog": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	var plan studyplan.Plan
	decode(t, rec, &plan)
	assert.Equal(t, []studyplan.PlanEntry{
		{Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Course: "Math", Topic: "Algebra", Allocated: 60, Remaining: 0},
		{Date: "2024-01-01", StartTime: "10:00", EndTime: "10:30", Course: "Math", Topic: "Geometry", Allocated: 30, Remaining: 90},
	}, plan.Entries)

	// the student was mailed the plan
	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "amani@ushauri.test", sent[0].To[0].Address)

	rec = app.do(t, http.MethodGet, base+"/plan", app.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest studyplan.Plan
	decode(t, rec, &latest)
	assert.Equal(t, plan.Entries, latest.Entries)

	// the run consumed: the residual is the student's backlog now
	rec = app.do(t, http.MethodGet, base+"/backlogs", app.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bl StudentBacklogsResponse
	decode(t, rec, &bl)
	assert.Equal(t, app.student.ID, bl.Scope)
	assert.Equal(t, studyplan.Backlogs{"Math": {{Name: "Geometry", Minutes: 90}}}, bl.Backlogs)

	checkError(t, app.do(t, http.MethodDelete, base+"/backlogs", app.studentToken, nil), http.StatusForbidden, errForbidden)
	assert.Equal(t, http.StatusNoContent, app.do(t, http.MethodDelete, base+"/backlogs", app.staffToken, nil).Code)

	rec = app.do(t, http.MethodGet, base+"/backlogs", app.studentToken, nil)
	decode(t, rec, &bl)
	assert.Equal(t, studyplan.CatalogScope, bl.Scope)
}

func Test_studyPlanApi_regenerate(t *testing.T) {
	app := setupPlans(t)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, "/v1/backlogs", app.staffToken, catalogBody()).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, "/v1/students/"+app.student.ID+"/schedule", app.studentToken, scheduleBody(blockBody(0, "09:00", "10:30", "Math"))).Code)
	require.NoError(t, app.planRepo.SaveSchedule(ctx, studyplan.Schedule{
		StudentID: "legacy",
		Blocks: []studyplan.ScheduleBlock{
			{ID: "b1", DayOfWeek: 0, StartTime: "09:00", EndTime: "11:00", Course: "Math"},
			{ID: "b2", DayOfWeek: 0, StartTime: "10:00", EndTime: "12:00", Course: "Math"},
		},
	}))

	checkError(t, app.do(t, http.MethodPost, "/v1/plans/regenerate", app.staffToken, nil), http.StatusForbidden, errForbidden)

	rec := app.do(t, http.MethodPost, "/v1/plans/regenerate", app.adminToken, RegenerateRequest{Workers: 2})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.JSONEq(t, `{"generated": 1, "skipped": 1}`, rec.Body.String())
	assert.Empty(t, app.mailSvc.SentMessages())

	rec = app.do(t, http.MethodGet, "/v1/students/"+app.student.ID+"/plan", app.studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
