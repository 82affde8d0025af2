package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
	emailsvc "github.com/trezcool/ushauri/services/email"
	logsvc "github.com/trezcool/ushauri/services/logger"
	inmemdb "github.com/trezcool/ushauri/storage/database/inmem"
)

type testCLI struct {
	*commandLine
	out      *bytes.Buffer
	usrRepo  user.Repository
	planRepo studyplan.Repository
}

func setup(t *testing.T) testCLI {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	planRepo := inmemdb.NewStudyPlanRepository(db)
	planSvc := studyplan.NewService(planRepo, nil, nil, emailsvc.NewConsoleServiceMock(conf), logger, conf)

	out := new(bytes.Buffer)
	return testCLI{
		commandLine: &commandLine{
			usrRepo: usrRepo,
			planSvc: planSvc,
			openDB:  func() (*sqlx.DB, error) { return nil, nil },
			out:     out,
		},
		out:      out,
		usrRepo:  usrRepo,
		planRepo: planRepo,
	}
}

func createUser(t *testing.T, repo user.Repository, name, uname, email, pwd string) user.User {
	t.Helper()
	usr := user.User{Name: name, Username: uname, Email: email, IsActive: true, Roles: []string{}}
	require.NoError(t, usr.SetPassword(pwd))
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "plans_index", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	cli.openDB = nil
	assert.EqualError(t, cli.run([]string{"admin", "migrate", "up"}), "migrations need the postgres database engine")
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := createUser(t, cli.usrRepo, "Amani", "amaniw", "amani@ushauri.test", "Tr4vel-Nairobi#")

	tests := []struct {
		cliTest
		pwd string
	}{
		{cliTest: cliTest{name: "no command", wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown command", args: []string{"lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "username but no password", args: []string{"resetpassword", "-username", "amaniw"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, wantErr: user.ErrNotFound}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with username", args: []string{"resetpassword", "-username", "AmaniW"}}, pwd: "kisumu"},
		{cliTest: cliTest{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}}, pwd: "eldoret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err != nil {
				return
			}

			refreshed, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := createUser(t, cli.usrRepo, "Kamau", "kamau1", "kamau@ushauri.test", "Tr4vel-Nairobi#")

	mockPassword(t, "")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-username", "wanjiku", "-email", "wanjiku@ushauri.test"}))
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-username", "wanjiku"}))

	mockPassword(t, "Kisumu-Lake#42")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", " Wanjiku ", "-email", "wanjiku@ushauri.test", "-name", "Wanjiku M.", "-admin"}))
	created, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "wanjiku"})
	require.NoError(t, err)
	assert.Equal(t, "Wanjiku M.", created.Name)
	assert.True(t, created.IsActive)
	assert.True(t, created.IsAdmin())
	assert.ElementsMatch(t, user.AllRoles, created.Roles)
	assert.NoError(t, created.CheckPassword("Kisumu-Lake#42"))
	assert.Contains(t, cli.out.String(), "user wanjiku ("+created.ID+") saved")

	// an existing user is updated, matched by email
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "kamau2", "-email", "kamau@ushauri.test"}))
	updated, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "kamau1", updated.Username)
	assert.Equal(t, "Kamau", updated.Name)
	assert.False(t, updated.IsAdmin())
	assert.NoError(t, updated.CheckPassword("Kisumu-Lake#42"))
}

func seedPlans(t *testing.T, cli testCLI) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, cli.planRepo.SaveBacklogs(ctx, studyplan.CatalogScope, studyplan.Backlogs{
		"Math": {{Name: "Algebra", Minutes: 60}, {Name: "Geometry", Minutes: 120}},
	}))
	for _, sched := range []studyplan.Schedule{
		{StudentID: "s1", Blocks: []studyplan.ScheduleBlock{{ID: "b1", DayOfWeek: 0, StartTime: "09:00", EndTime: "10:30", Course: "Math"}}},
		{StudentID: "s2", Blocks: []studyplan.ScheduleBlock{{ID: "b2", DayOfWeek: 2, StartTime: "14:00", EndTime: "15:00", Course: "Math"}}},
		{StudentID: "s3", Blocks: []studyplan.ScheduleBlock{
			{ID: "b3", DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00", Course: "Math"},
			{ID: "b4", DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", Course: "Math"},
		}},
	} {
		require.NoError(t, cli.planRepo.SaveSchedule(ctx, sched))
	}
}

func Test_commandLine_regenerate(t *testing.T) {
	cli := setup(t)
	seedPlans(t, cli)

	assert.Error(t, cli.run([]string{"admin", "regenerate", "-workers", "lol"}))

	cli.out.Reset()
	require.NoError(t, cli.run([]string{"admin", "regenerate", "-workers", "2"}))
	assert.Equal(t, "2 plans generated, 1 students skipped\n", cli.out.String())

	for _, id := range []string{"s1", "s2"} {
		_, err := cli.planRepo.GetPlan(context.Background(), id)
		assert.NoError(t, err, id)
	}
	_, err := cli.planRepo.GetPlan(context.Background(), "s3")
	assert.Equal(t, studyplan.ErrNotFound, err)
}

func Test_commandLine_plan(t *testing.T) {
	cli := setup(t)
	seedPlans(t, cli)

	origNow := core.NowFunc
	t.Cleanup(func() { core.NowFunc = origNow })
	core.NowFunc = func() time.Time { return time.Date(2024, time.January, 4, 12, 0, 0, 0, time.UTC) }

	tests := []cliTest{
		{name: "no student", args: []string{"plan"}, wantErr: errHelp},
		{name: "negative days", args: []string{"plan", "-student", "s1", "-days", "-1"}, wantErr: errHelp},
		{name: "bad anchor", args: []string{"plan", "-student", "s1", "-anchor", "2024-13-01"}, wantErrStr: "parsing anchor: parsing time \"2024-13-01\": month out of range"},
		{name: "overlapping schedule", args: []string{"plan", "-student", "s3"}, wantErrStr: "blocks of the same day must not overlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	cli.out.Reset()
	require.NoError(t, cli.run([]string{"admin", "plan", "-student", "s1", "-days", "1"}))
	want := "Plan of s1: 1 days from 2024-01-01\n\n" +
		"DATE        START  END    COURSE  TOPIC     ALLOCATED  REMAINING\n" +
		"2024-01-01  09:00  10:00  Math    Algebra   60         0\n" +
		"2024-01-01  10:00  10:30  Math    Geometry  30         90\n" +
		"\nLeft over:\n" +
		"  Math: 90 min - Geometry (90)\n"
	assert.Equal(t, want, cli.out.String())

	// previews are not saved
	_, err := cli.planRepo.GetPlan(context.Background(), "s1")
	assert.Equal(t, studyplan.ErrNotFound, err)

	cli.out.Reset()
	require.NoError(t, cli.run([]string{"admin", "plan", "-student", "nobody", "-anchor", "2024-01-08"}))
	want = "Plan of nobody: 14 days from 2024-01-08\n\n" +
		"nothing to study\n" +
		"\nLeft over:\n" +
		"  Math: 180 min - Algebra (60), Geometry (120)\n"
	assert.Equal(t, want, cli.out.String())
}
