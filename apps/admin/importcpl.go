package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/obeworks/kurikulum/core/outcome"
)

// catalogue is the YAML layout of a CPL import:
//
//	cpl:
//	  - code: CPL-01
//	    description: ...
//	    category: knowledge
type catalogue struct {
	CPL []catalogueCPL `yaml:"cpl"`
}

type catalogueCPL struct {
	Code        string           `yaml:"code"`
	Description string           `yaml:"description"`
	Category    outcome.Category `yaml:"category"`
	Order       int              `yaml:"order"`
}

func readCatalogue(path string) (catalogue, error) {
	var cat catalogue
	f, err := os.Open(path)
	if err != nil {
		return cat, errors.Wrap(err, "opening catalogue")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&cat); err != nil {
		return cat, errors.Wrap(err, "decoding catalogue")
	}
	return cat, nil
}

func (cli *commandLine) importCPL(curriculumID, path string) error {
	cat, err := readCatalogue(path)
	if err != nil {
		return err
	}
	items := make([]outcome.NewCPL, 0, len(cat.CPL))
	for i, c := range cat.CPL {
		order := c.Order
		if order == 0 {
			order = i + 1
		}
		items = append(items, outcome.NewCPL{
			CurriculumID: curriculumID,
			Code:         c.Code,
			Description:  c.Description,
			Category:     c.Category,
			Order:        order,
		})
	}
	report := cli.svc.Outcomes.BulkCreateCPL(context.Background(), items, cliActor)
	return cli.printJSON(report)
}
