package studyplan

import (
	"fmt"
	"regexp"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

var (
	hhmmTag   = "hhmm"
	hhmmText  = "{0} must be a 24-hour HH:MM time"
	hhmmRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	errOverlapText = "blocks of the same day must not overlap"
)

// InitValidators registers the study plan validators & translations on `validate`.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(hhmmTag, func(fl validator.FieldLevel) bool {
		return hhmmRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterTranslation(
		hhmmTag, translator,
		func(t ut.Translator) error { return t.Add(hhmmTag, hhmmText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(hhmmTag, fe.Field())
			return s
		},
	)
}

// BlockInput is a ScheduleBlock as sent by the weekly editor.
type BlockInput struct {
	ID        string `json:"id"`
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
	Course    string `json:"course" validate:"required"`
}

// ScheduleInput is the full weekly template of a student. It replaces the previous one.
type ScheduleInput struct {
	Blocks []BlockInput `json:"blocks" validate:"dive"`
}

// Validate checks the blocks format and returns them, with a fresh ID for new blocks.
// Course labels are kept verbatim. Overlaps are not checked here (see Service.SaveSchedule).
func (in *ScheduleInput) Validate(validate *validator.Validate) ([]ScheduleBlock, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	blocks := make([]ScheduleBlock, 0, len(in.Blocks))
	for _, b := range in.Blocks {
		id := core.CleanString(b.ID)
		if id == "" {
			id = uuid.New().String()
		}
		blocks = append(blocks, ScheduleBlock{
			ID:        id,
			DayOfWeek: *b.DayOfWeek,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Course:    b.Course,
		})
	}
	return blocks, nil
}

type TopicInput struct {
	Name    string `json:"name" validate:"required"`
	Minutes *int   `json:"minutes" validate:"required,min=0"`
}

// BacklogsInput maps course labels to their topics, head first.
type BacklogsInput map[string][]TopicInput

// Validate checks every course & topic and returns the backlogs.
// Field errors are keyed "<course>[<index>].<field>".
func (in BacklogsInput) Validate(validate *validator.Validate, translator ut.Translator) (Backlogs, error) {
	var flds []core.FieldError
	out := make(Backlogs, len(in))

	for course, topics := range in {
		if course == "" {
			flds = append(flds, core.FieldError{Field: "course", Error: "course label is required"})
			continue
		}
		queue := make([]Topic, 0, len(topics))
		for i, t := range topics {
			t.Name = core.CleanString(t.Name)
			if err := validate.Struct(t); err != nil {
				var vErrs validator.ValidationErrors
				if !errors.As(err, &vErrs) {
					return nil, errors.Wrap(err, "validating topic")
				}
				flds = append(flds, core.TranslateFieldErrors(vErrs, translator, fmt.Sprintf("%s[%d].", course, i))...)
				continue
			}
			queue = append(queue, Topic{Name: t.Name, Minutes: *t.Minutes})
		}
		out[course] = queue
	}

	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}
	return out, nil
}

// GenerateInput is the body of a plan generation request.
type GenerateInput struct {
	AnchorDate     string `json:"anchor_date" validate:"omitempty,datetime=2006-01-02"`
	HorizonDays    int    `json:"horizon_days" validate:"omitempty,min=1,max=366"`
	ConsumeBacklog bool   `json:"consume_backlog"`
}

func (in *GenerateInput) Validate(validate *validator.Validate) (GenerateOptions, error) {
	in.AnchorDate = core.CleanString(in.AnchorDate)
	if err := validate.Struct(in); err != nil {
		return GenerateOptions{}, err
	}
	opts := GenerateOptions{HorizonDays: in.HorizonDays, ConsumeBacklog: in.ConsumeBacklog}
	if in.AnchorDate != "" {
		anchor, err := time.Parse(DateLayout, in.AnchorDate)
		if err != nil {
			return GenerateOptions{}, core.NewValidationError(nil, core.FieldError{Field: "anchor_date", Error: err.Error()})
		}
		opts.AnchorDate = anchor
	}
	return opts, nil
}
