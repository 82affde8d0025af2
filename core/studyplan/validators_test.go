package studyplan

import (
	"errors"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core"
)

func newValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func intPtr(i int) *int { return &i }

func TestScheduleInputValidate(t *testing.T) {
	validate, _ := newValidate()

	tests := []struct {
		name     string
		block    BlockInput
		wantTags []string
	}{
		{
			name:  "valid",
			block: BlockInput{DayOfWeek: intPtr(0), StartTime: "09:00", EndTime: "10:30", Course: " Math "},
		},
		{
			name:     "sunday is the last day",
			block:    BlockInput{DayOfWeek: intPtr(7), StartTime: "09:00", EndTime: "10:30", Course: "Math"},
			wantTags: []string{"max"},
		},
		{
			name:     "missing day",
			block:    BlockInput{StartTime: "09:00", EndTime: "10:30", Course: "Math"},
			wantTags: []string{"required"},
		},
		{
			name:     "bad times",
			block:    BlockInput{DayOfWeek: intPtr(1), StartTime: "9:00", EndTime: "24:00", Course: "Math"},
			wantTags: []string{hhmmTag, hhmmTag},
		},
		{
			name:     "missing course",
			block:    BlockInput{DayOfWeek: intPtr(1), StartTime: "09:00", EndTime: "10:00"},
			wantTags: []string{"required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ScheduleInput{Blocks: []BlockInput{tt.block}}
			blocks, err := in.Validate(validate)
			if len(tt.wantTags) == 0 {
				require.NoError(t, err)
				require.Len(t, blocks, 1)
				assert.NotEmpty(t, blocks[0].ID)
				assert.Equal(t, " Math ", blocks[0].Course)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "want validation errors, got %v", err)
			tags := make([]string, 0, len(vErrs))
			for _, fe := range vErrs {
				tags = append(tags, fe.Tag())
			}
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestScheduleInputKeepsBlockIDs(t *testing.T) {
	validate, _ := newValidate()
	in := ScheduleInput{Blocks: []BlockInput{
		{ID: "b1", DayOfWeek: intPtr(0), StartTime: "09:00", EndTime: "10:00", Course: "Math"},
		{ID: "  ", DayOfWeek: intPtr(0), StartTime: "10:00", EndTime: "11:00", Course: "Math"},
	}}
	blocks, err := in.Validate(validate)
	require.NoError(t, err)
	assert.Equal(t, "b1", blocks[0].ID)
	assert.NotEqual(t, "", blocks[1].ID)
	assert.NotEqual(t, "b1", blocks[1].ID)

	blocks, err = (&ScheduleInput{}).Validate(validate)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestBacklogsInputValidate(t *testing.T) {
	validate, translator := newValidate()

	in := BacklogsInput{
		"Math": {
			{Name: " Algebra ", Minutes: intPtr(60)},
			{Name: "Done", Minutes: intPtr(0)},
		},
		"Physics": {},
	}
	bl, err := in.Validate(validate, translator)
	require.NoError(t, err)
	assert.Equal(t, Backlogs{
		"Math":    {{Name: "Algebra", Minutes: 60}, {Name: "Done", Minutes: 0}},
		"Physics": {},
	}, bl)

	in = BacklogsInput{
		"Math": {
			{Name: "Algebra", Minutes: intPtr(60)},
			{Name: "", Minutes: intPtr(-5)},
		},
	}
	_, err = in.Validate(validate, translator)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a validation error, got %v", err)
	fields := make([]string, 0, len(vErr.Fields))
	for _, f := range vErr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"Math[1].name", "Math[1].minutes"}, fields)

	_, err = BacklogsInput{"": {{Name: "Algebra", Minutes: intPtr(60)}}}.Validate(validate, translator)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "course", vErr.Fields[0].Field)
}

func TestGenerateInputValidate(t *testing.T) {
	validate, _ := newValidate()

	tests := []struct {
		name    string
		in      GenerateInput
		want    GenerateOptions
		wantErr bool
	}{
		{name: "defaults", in: GenerateInput{}},
		{
			name: "explicit",
			in:   GenerateInput{AnchorDate: " 2024-01-03 ", HorizonDays: 7, ConsumeBacklog: true},
			want: GenerateOptions{AnchorDate: time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), HorizonDays: 7, ConsumeBacklog: true},
		},
		{name: "bad date", in: GenerateInput{AnchorDate: "2024-13-01"}, wantErr: true},
		{name: "horizon too long", in: GenerateInput{HorizonDays: 400}, wantErr: true},
		{name: "negative horizon", in: GenerateInput{HorizonDays: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.in.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}
