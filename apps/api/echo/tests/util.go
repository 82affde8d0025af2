package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/ushauri/apps/api/echo"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
	appfs "github.com/trezcool/ushauri/fs"
	emailsvc "github.com/trezcool/ushauri/services/email"
	logsvc "github.com/trezcool/ushauri/services/logger"
	inmemdb "github.com/trezcool/ushauri/storage/database/inmem"
)

const testPassword = "Tr4vel-Nairobi#"

type testApp struct {
	server   *Server
	conf     *core.Config
	usrRepo  user.Repository
	planRepo studyplan.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
	created  int
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	studyplan.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	planRepo := inmemdb.NewStudyPlanRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, validate, logger, conf)
	planSvc := studyplan.NewService(planRepo, nil, usrSvc, mailSvc, logger, conf)

	// set up server
	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		PlanSvc:        planSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = server.Close() })

	return &testApp{
		server:   server,
		conf:     conf,
		usrRepo:  usrRepo,
		planRepo: planRepo,
		mailSvc:  mailSvc,
	}
}

// createUser stores a user with testPassword; users are created one minute apart.
func (app *testApp) createUser(t *testing.T, name, uname, email string, roles []string, isActive bool) user.User {
	t.Helper()
	app.created++
	createdAt := time.Date(2024, time.January, 1, 8, app.created, 0, 0, time.UTC)
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		Roles:     roles,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, usr.SetPassword(testPassword))
	usr, err := app.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr, app.conf), app.conf)
	require.NoError(t, err)
	return token
}

// do serves a JSON request; body is marshalled unless it already is a []byte.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func checkError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, want httpErr) {
	t.Helper()
	require.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
	var got httpErr
	decode(t, rec, &got)
	require.Equal(t, want, got)
}

func checkFieldErrors(t *testing.T, rec *httptest.ResponseRecorder, fields ...string) map[string]string {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
	var got map[string]string
	decode(t, rec, &got)
	for _, f := range fields {
		require.Contains(t, got, f)
	}
	return got
}
