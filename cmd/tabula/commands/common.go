package commands

import (
	"os"

	"github.com/teranos/tabula/engine"
	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/mapping/loader"
	"github.com/teranos/tabula/overrides"
)

// loadSnapshot loads the mapping configuration from dir, falling back
// to the settings-configured base directory when dir is empty.
func loadSnapshot(dir string) (*loader.Loader, error) {
	cfg, err := engine.Load()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = cfg.Loader.BaseDir
	}

	opts := loader.DefaultOptions()
	opts.RequireVersions = cfg.Loader.RequireVersions

	ldr, err := loader.New(dir, opts)
	if err != nil {
		return nil, err
	}
	if _, err := ldr.Load(); err != nil {
		return nil, err
	}
	return ldr, nil
}

// loadRuleFile parses and validates an override rule file. Validation
// failures are returned as one wrapped error listing every problem.
func loadRuleFile(path string) ([]overrides.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading rule file %s", path)
	}

	rules, err := overrides.ParseRules(data)
	if err != nil {
		return nil, err
	}

	if problems := overrides.ValidateRules(rules); len(problems) > 0 {
		err := errors.Newf("%d rule validation problems", len(problems))
		for _, p := range problems {
			err = errors.WithDetail(err, p.Error())
		}
		return rules, err
	}
	return rules, nil
}
