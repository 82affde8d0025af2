package studyplan

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

// DefaultHorizonDays is used when neither the caller nor the config set a horizon.
const DefaultHorizonDays = 14

var (
	// errors
	ErrNotFound        = errors.New("record not found")
	ErrScheduleOverlap = errors.New(errOverlapText)

	weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
)

type (
	// Repository stores the schedules, backlogs & latest plans. Missing records return ErrNotFound.
	Repository interface {
		GetSchedule(ctx context.Context, studentID string) (Schedule, error)
		SaveSchedule(ctx context.Context, sched Schedule) error
		// ListScheduledStudents returns the ids of the students having a schedule.
		ListScheduledStudents(ctx context.Context) ([]string, error)

		// scope is CatalogScope or a student id
		GetBacklogs(ctx context.Context, scope string) (Backlogs, error)
		SaveBacklogs(ctx context.Context, scope string, bl Backlogs) error
		DeleteBacklogs(ctx context.Context, scope string) error

		GetPlan(ctx context.Context, studentID string) (Plan, error)
		SavePlan(ctx context.Context, plan Plan) error
	}

	// Cache keeps the latest plan of students close at hand.
	Cache interface {
		GetPlan(ctx context.Context, studentID string) (plan Plan, found bool, err error)
		SetPlan(ctx context.Context, plan Plan) error
		Invalidate(ctx context.Context, studentID string) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		cache   Cache
		users   UserGetter
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

// NopCache caches nothing.
type NopCache struct{}

var _ Cache = NopCache{}

func (NopCache) GetPlan(context.Context, string) (Plan, bool, error) { return Plan{}, false, nil }
func (NopCache) SetPlan(context.Context, Plan) error                 { return nil }
func (NopCache) Invalidate(context.Context, string) error            { return nil }

// NewService returns a study plan Service. A nil cache disables caching.
func NewService(
	repo Repository,
	cache Cache,
	users UserGetter,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

func overlapError(blocks []ScheduleBlock) error {
	pairs := Overlaps(blocks)
	details := make([]string, 0, len(pairs))
	for _, p := range pairs {
		details = append(details, fmt.Sprintf(
			"%s %s-%s (%s) / %s-%s (%s)",
			weekdays[p[0].DayOfWeek],
			p[0].StartTime, p[0].EndTime, p[0].Course,
			p[1].StartTime, p[1].EndTime, p[1].Course,
		))
	}
	msg := errOverlapText
	if len(details) > 0 {
		msg += ": " + strings.Join(details, "; ")
	}
	return core.NewValidationError(ErrScheduleOverlap, core.FieldError{Field: "blocks", Error: msg})
}

// GetSchedule returns the student's weekly template; an empty one if they have none yet.
func (svc *Service) GetSchedule(ctx context.Context, studentID string) (Schedule, error) {
	sched, err := svc.repo.GetSchedule(ctx, studentID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Schedule{}, errors.Wrap(err, "getting schedule")
		}
		sched = Schedule{StudentID: studentID}
	}
	if sched.Blocks == nil {
		sched.Blocks = []ScheduleBlock{}
	}
	return sched, nil
}

// CheckSchedule reports whether `blocks` has same-day overlaps. Nothing is saved.
func (svc *Service) CheckSchedule(blocks []ScheduleBlock) bool {
	return HasOverlap(blocks)
}

// SaveSchedule replaces the student's weekly template. Overlapping templates are refused.
func (svc *Service) SaveSchedule(ctx context.Context, studentID string, blocks []ScheduleBlock) (Schedule, error) {
	if HasOverlap(blocks) {
		return Schedule{}, overlapError(blocks)
	}
	if blocks == nil {
		blocks = []ScheduleBlock{}
	}
	sched := Schedule{
		StudentID: studentID,
		Blocks:    blocks,
		UpdatedAt: core.NowFunc().UTC(),
	}
	if err := svc.repo.SaveSchedule(ctx, sched); err != nil {
		return Schedule{}, errors.Wrap(err, "saving schedule")
	}
	if err := svc.cache.Invalidate(ctx, studentID); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cached plan of student %s: %v", studentID, err), err)
	}
	return sched, nil
}

func (svc *Service) getBacklogs(ctx context.Context, scope string) (Backlogs, error) {
	bl, err := svc.repo.GetBacklogs(ctx, scope)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return nil, errors.Wrap(err, "getting backlogs")
		}
		return Backlogs{}, ErrNotFound
	}
	if bl == nil {
		bl = Backlogs{}
	}
	return bl, nil
}

// GetCatalog returns the nominal backlog of every course.
func (svc *Service) GetCatalog(ctx context.Context) (Backlogs, error) {
	bl, err := svc.getBacklogs(ctx, CatalogScope)
	if err == ErrNotFound {
		return bl, nil
	}
	return bl, err
}

// SaveCatalog replaces the nominal backlog of every course.
func (svc *Service) SaveCatalog(ctx context.Context, bl Backlogs) (Backlogs, error) {
	if bl == nil {
		bl = Backlogs{}
	}
	if err := svc.repo.SaveBacklogs(ctx, CatalogScope, bl); err != nil {
		return nil, errors.Wrap(err, "saving catalog")
	}
	return bl, nil
}

// GetStudentBacklogs returns the backlogs the next run of the student starts from, and their scope:
// the student's residual backlog when a previous run consumed, else the catalog.
func (svc *Service) GetStudentBacklogs(ctx context.Context, studentID string) (Backlogs, string, error) {
	bl, err := svc.getBacklogs(ctx, studentID)
	if err == nil {
		return bl, studentID, nil
	}
	if err != ErrNotFound {
		return nil, "", err
	}
	bl, err = svc.GetCatalog(ctx)
	return bl, CatalogScope, err
}

// ResetStudentBacklogs drops the student's residual backlog: their next run starts from the catalog.
func (svc *Service) ResetStudentBacklogs(ctx context.Context, studentID string) error {
	if err := svc.repo.DeleteBacklogs(ctx, studentID); err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "deleting student backlogs")
	}
	return nil
}

func (svc *Service) horizon(days int) int {
	if days > 0 {
		return days
	}
	if svc.conf != nil && svc.conf.Planner.HorizonDays > 0 {
		return svc.conf.Planner.HorizonDays
	}
	return DefaultHorizonDays
}

// Generate builds, saves & caches a new plan for the student. Overlapping schedules are refused.
// The residual backlog replaces the student's backlog only when opts.ConsumeBacklog is set.
func (svc *Service) Generate(ctx context.Context, studentID string, opts GenerateOptions) (Plan, error) {
	return svc.generate(ctx, studentID, opts, true)
}

// Preview builds a plan for the student like Generate does, without saving, caching or mailing it.
func (svc *Service) Preview(ctx context.Context, studentID string, opts GenerateOptions) (Plan, error) {
	sched, err := svc.GetSchedule(ctx, studentID)
	if err != nil {
		return Plan{}, err
	}
	if HasOverlap(sched.Blocks) {
		return Plan{}, overlapError(sched.Blocks)
	}

	backlogs, _, err := svc.GetStudentBacklogs(ctx, studentID)
	if err != nil {
		return Plan{}, err
	}

	anchor := opts.AnchorDate
	if anchor.IsZero() {
		anchor = WeekStart(core.NowFunc())
	}
	anchor = Midnight(anchor)
	horizon := svc.horizon(opts.HorizonDays)

	entries, residual := Generate(sched.Blocks, backlogs, anchor, horizon)
	return Plan{
		StudentID:   studentID,
		AnchorDate:  anchor.Format(DateLayout),
		HorizonDays: horizon,
		Entries:     entries,
		Residual:    residual,
		GeneratedAt: core.NowFunc().UTC(),
	}, nil
}

func (svc *Service) generate(ctx context.Context, studentID string, opts GenerateOptions, notify bool) (Plan, error) {
	plan, err := svc.Preview(ctx, studentID, opts)
	if err != nil {
		return Plan{}, err
	}

	if err = svc.repo.SavePlan(ctx, plan); err != nil {
		return Plan{}, errors.Wrap(err, "saving plan")
	}
	if opts.ConsumeBacklog {
		if err = svc.repo.SaveBacklogs(ctx, studentID, plan.Residual); err != nil {
			return Plan{}, errors.Wrap(err, "saving residual backlogs")
		}
	}
	if err = svc.cache.SetPlan(ctx, plan); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching plan of student %s: %v", studentID, err), err)
	}
	if notify {
		svc.notify(ctx, plan)
	}
	return plan, nil
}

// LatestPlan returns the last plan generated for the student, or ErrNotFound.
func (svc *Service) LatestPlan(ctx context.Context, studentID string) (Plan, error) {
	plan, found, err := svc.cache.GetPlan(ctx, studentID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached plan of student %s: %v", studentID, err), err)
	} else if found {
		return plan, nil
	}

	plan, err = svc.repo.GetPlan(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Plan{}, ErrNotFound
		}
		return Plan{}, errors.Wrap(err, "getting plan")
	}
	if err = svc.cache.SetPlan(ctx, plan); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching plan of student %s: %v", studentID, err), err)
	}
	return plan, nil
}

// RegenerateAll generates a fresh plan for every scheduled student, `workers` at a time
// (conf.Planner.Workers when <= 0).
// Runs never consume backlogs. Students with an overlapping schedule are skipped.
func (svc *Service) RegenerateAll(ctx context.Context, workers int, notify bool) (RegenerateResult, error) {
	ids, err := svc.repo.ListScheduledStudents(ctx)
	if err != nil {
		return RegenerateResult{}, errors.Wrap(err, "listing scheduled students")
	}
	if workers <= 0 && svc.conf != nil {
		workers = svc.conf.Planner.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	var (
		res RegenerateResult
		mu  sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := svc.generate(gctx, id, GenerateOptions{}, notify)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Generated++
			case errors.Is(err, ErrScheduleOverlap):
				res.Skipped++
				svc.logger.Warn(fmt.Sprintf("skipping student %s: %v", id, err))
			default:
				return errors.Wrapf(err, "generating plan of student %s", id)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func (svc *Service) notify(ctx context.Context, plan Plan) {
	if svc.users == nil || svc.mailSvc == nil {
		return
	}
	usr, err := svc.users.GetByID(ctx, plan.StudentID)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			svc.logger.Error(fmt.Sprintf("finding student %s: %v", plan.StudentID, err), err)
		}
		return
	}
	if usr.Email == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your study plan",
		TemplateName: "study_plan",
		TemplateData: map[string]interface{}{
			"Name":        usr.Name,
			"AnchorDate":  plan.AnchorDate,
			"HorizonDays": plan.HorizonDays,
			"Entries":     plan.Entries,
		},
	}
	content, err := PlanCSV(plan)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("writing plan csv: %v", err), err, usr)
	} else if err = msg.Attach(content, "study-plan-"+plan.AnchorDate+".csv", "text/csv"); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching plan csv: %v", err), err, usr)
	}
	svc.mailSvc.SendMessages(msg)
}

// PlanCSV renders the plan entries as CSV, header first.
func PlanCSV(plan Plan) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"date", "start_time", "end_time", "course", "topic", "allocated", "remaining"})
	for _, e := range plan.Entries {
		_ = w.Write([]string{
			e.Date, e.StartTime, e.EndTime, e.Course, e.Topic,
			strconv.Itoa(e.Allocated), strconv.Itoa(e.Remaining),
		})
	}
	w.Flush()
	return buf, errors.Wrap(w.Error(), "writing csv")
}

// ParseAnchor parses a YYYY-MM-DD date; the empty string is the zero time.
func ParseAnchor(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}
