package main

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/domains"
)

// loadDomains merges the domain file with inline domains. Flags win over
// config: an explicit --file replaces input.file and --domain values
// replace input.domains. A missing default file is fine when inline
// domains were given.
func loadDomains(file string, inline []string) ([]string, error) {
	explicitFile := file != ""
	if !explicitFile {
		file = cfg.Input.File
	}
	if len(inline) == 0 {
		inline = cfg.Input.Domains
	}

	var sources [][]string
	if file != "" {
		list, err := domains.LoadFile(file)
		switch {
		case err == nil:
			sources = append(sources, list)
		case explicitFile || len(inline) == 0 || !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	var flat []string
	for _, v := range inline {
		flat = append(flat, domains.ParseList(v)...)
	}
	sources = append(sources, flat)

	list, errs := domains.Collect(sources...)
	for _, err := range errs {
		zap.L().Warn("skipping invalid domain", zap.Error(err))
	}
	if len(list) == 0 {
		return nil, eris.New("no valid domains to check")
	}
	return list, nil
}
