package main

import (
	"context"

	"github.com/pkg/errors"
)

var errInvalidWeights = errors.New("template weights are invalid")

func (cli *commandLine) validateWeights(rpsID string) error {
	res, err := cli.svc.Assessments.ValidateTemplateWeights(context.Background(), rpsID)
	if err != nil {
		return err
	}
	if err = cli.printJSON(res); err != nil {
		return err
	}
	if !res.IsValid {
		return errInvalidWeights
	}
	return nil
}

func (cli *commandLine) recalculate(classID string) error {
	report, err := cli.svc.Achievement.RecalculateClassGrades(context.Background(), classID)
	if err != nil {
		return err
	}
	return cli.printJSON(report)
}

func (cli *commandLine) report(enrollmentID, assessmentTypeID string) error {
	report, err := cli.svc.Curriculum.StudentOutcomeReport(context.Background(), enrollmentID, assessmentTypeID)
	if err != nil {
		return err
	}
	return cli.printJSON(report)
}
