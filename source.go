package opencl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// readSources reads every reader to EOF. All read failures are reported.
func readSources(rs []io.Reader) ([]string, error) {
	sources := make([]string, len(rs))
	var errs error
	for i, r := range rs {
		b, err := io.ReadAll(r)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("opencl: read source %d: %w", i, err))
			continue
		}
		sources[i] = string(b)
	}
	if errs != nil {
		return nil, errs
	}
	return sources, nil
}

// readFiles reads every file. All read failures are reported.
func readFiles(paths []string) ([]string, error) {
	sources := make([]string, len(paths))
	var errs error
	for i, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("opencl: read source: %w", err))
			continue
		}
		sources[i] = string(b)
	}
	if errs != nil {
		return nil, errs
	}
	return sources, nil
}

// trimLog strips the whitespace and NULs compilers pad logs with.
func trimLog(s string) string {
	return strings.Trim(s, " \t\r\n\x00")
}
