package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
)

func (cli *commandLine) regenerate(workers int, notify bool) error {
	res, err := cli.planSvc.RegenerateAll(context.Background(), workers, notify)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d plans generated, %d students skipped\n", res.Generated, res.Skipped)
	return nil
}

// plan prints a plan of the student, nothing is saved.
func (cli *commandLine) plan(studentID, anchor string, days int) error {
	anchorDate, err := studyplan.ParseAnchor(core.CleanString(anchor))
	if err != nil {
		return errors.Wrap(err, "parsing anchor")
	}

	plan, err := cli.planSvc.Preview(context.Background(), studentID, studyplan.GenerateOptions{
		AnchorDate:  anchorDate,
		HorizonDays: days,
	})
	if err != nil {
		return err
	}
	printPlan(cli.out, plan)
	return nil
}

func printPlan(out io.Writer, plan studyplan.Plan) {
	fmt.Fprintf(out, "Plan of %s: %d days from %s\n\n", plan.StudentID, plan.HorizonDays, plan.AnchorDate)
	if len(plan.Entries) == 0 {
		fmt.Fprintln(out, "nothing to study")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSTART\tEND\tCOURSE\tTOPIC\tALLOCATED\tREMAINING")
		for _, e := range plan.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", e.Date, e.StartTime, e.EndTime, e.Course, e.Topic, e.Allocated, e.Remaining)
		}
		_ = w.Flush()
	}

	courses := make([]string, 0, len(plan.Residual))
	for course := range plan.Residual {
		if plan.Residual.Total(course) > 0 {
			courses = append(courses, course)
		}
	}
	if len(courses) == 0 {
		return
	}
	sort.Strings(courses)

	fmt.Fprintln(out, "\nLeft over:")
	for _, course := range courses {
		names := make([]string, 0, len(plan.Residual[course]))
		for _, t := range plan.Residual[course] {
			names = append(names, fmt.Sprintf("%s (%d)", t.Name, t.Minutes))
		}
		fmt.Fprintf(out, "  %s: %d min - %s\n", course, plan.Residual.Total(course), strings.Join(names, ", "))
	}
}
