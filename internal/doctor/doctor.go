// Package doctor runs the dataset invariant checks from spec §3.2/§8.1
// against a live Dataset, in the teacher's Checker/Check/Report/Severity
// idiom.
package doctor

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/jaa/blackbird/internal/dataset"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

// Checker runs every invariant check. CheckWritable is injectable for
// tests; it defaults to an actual temp-file write probe.
type Checker struct {
	CheckWritable func(string) error
}

func NewChecker() *Checker {
	return &Checker{CheckWritable: checkDirWritable}
}

var cdPattern = regexp.MustCompile(`^CD\d+$`)

// Check runs every invariant from spec §3.2 against ds, plus a writability
// probe of every registered location root.
func (c *Checker) Check(ctx context.Context, ds *dataset.Dataset) Report {
	report := Report{Checks: []Check{}}

	report.Checks = append(report.Checks, c.checkTrackLocations(ds)...)
	report.Checks = append(report.Checks, checkFileCountAggregation(ds)...)
	report.Checks = append(report.Checks, checkSchemaUnambiguous(ds)...)
	report.Checks = append(report.Checks, checkMultipleInvariant(ds)...)
	report.Checks = append(report.Checks, checkHashAgreement(ds)...)
	report.Checks = append(report.Checks, checkCDNumbers(ds)...)
	report.Checks = append(report.Checks, c.checkLocationsWritable(ds)...)

	return report
}

func (c *Checker) checkTrackLocations(ds *dataset.Dataset) []Check {
	var checks []Check
	bad := 0
	for trackPath := range ds.Index.Tracks {
		name, _, err := splitTrackPath(trackPath)
		if err != nil {
			bad++
			continue
		}
		if _, ok := ds.Registry.Path(name); !ok {
			bad++
		}
	}
	if bad > 0 {
		checks = append(checks, Check{Severity: SeverityError, Name: "index", Message: fmt.Sprintf("%d track(s) reference an unknown location", bad)})
	} else {
		checks = append(checks, Check{Severity: SeverityInfo, Name: "index", Message: "every track resolves to a registered location"})
	}
	return checks
}

func splitTrackPath(trackPath string) (string, string, error) {
	for i, r := range trackPath {
		if r == '/' {
			return trackPath[:i], trackPath[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed track path %q", trackPath)
}

func checkFileCountAggregation(ds *dataset.Dataset) []Check {
	sum := 0
	for _, stats := range ds.Index.StatsByLocation {
		sum += stats.Files
	}
	if sum != ds.Index.TotalFiles {
		return []Check{{Severity: SeverityError, Name: "index", Message: fmt.Sprintf("stats_by_location file counts sum to %d, want total_files %d", sum, ds.Index.TotalFiles)}}
	}
	return []Check{{Severity: SeverityInfo, Name: "index", Message: "stats_by_location aggregates agree with total_files"}}
}

func checkSchemaUnambiguous(ds *dataset.Dataset) []Check {
	if err := ds.Schema.Validate(); err != nil {
		return []Check{{Severity: SeverityError, Name: "schema", Message: err.Error()}}
	}
	return []Check{{Severity: SeverityInfo, Name: "schema", Message: "no ambiguous component patterns"}}
}

func checkMultipleInvariant(ds *dataset.Dataset) []Check {
	violations := 0
	for _, t := range ds.Index.Tracks {
		for component, paths := range t.Files {
			def, ok := ds.Schema.Components[component]
			if !ok || def.Multiple {
				continue
			}
			if len(paths) > 1 {
				violations++
			}
		}
	}
	if violations > 0 {
		return []Check{{Severity: SeverityError, Name: "index", Message: fmt.Sprintf("%d track(s) have more than one file for a multiple:false component", violations)}}
	}
	return []Check{{Severity: SeverityInfo, Name: "index", Message: "multiple:false components never repeat per track"}}
}

func checkHashAgreement(ds *dataset.Dataset) []Check {
	bad := 0
	for _, info := range ds.Index.FileInfoByHash {
		found := false
		for _, t := range ds.Index.Tracks {
			if size, ok := t.FileSizes[info.Path]; ok && size == info.Size {
				found = true
				break
			}
		}
		if !found {
			bad++
		}
	}
	if bad > 0 {
		return []Check{{Severity: SeverityError, Name: "index", Message: fmt.Sprintf("%d file_info_by_hash entries do not match any track", bad)}}
	}
	return []Check{{Severity: SeverityInfo, Name: "index", Message: "file_info_by_hash agrees with track file sizes"}}
}

func checkCDNumbers(ds *dataset.Dataset) []Check {
	bad := 0
	for _, t := range ds.Index.Tracks {
		if t.CDNumber != "" && !cdPattern.MatchString(t.CDNumber) {
			bad++
		}
	}
	if bad > 0 {
		return []Check{{Severity: SeverityError, Name: "index", Message: fmt.Sprintf("%d track(s) have a CD directory not matching CD\\d+", bad)}}
	}
	return []Check{{Severity: SeverityInfo, Name: "index", Message: "every CD directory matches CD\\d+"}}
}

func (c *Checker) checkLocationsWritable(ds *dataset.Dataset) []Check {
	checkWritable := c.CheckWritable
	if checkWritable == nil {
		checkWritable = checkDirWritable
	}

	var checks []Check
	for _, name := range ds.Registry.Names() {
		root, ok := ds.Registry.Path(name)
		if !ok {
			continue
		}
		if err := checkWritable(root); err != nil {
			checks = append(checks, Check{Severity: SeverityError, Name: "filesystem", Message: fmt.Sprintf("location %s (%s) is not writable: %v", name, root, err)})
		} else {
			checks = append(checks, Check{Severity: SeverityInfo, Name: "filesystem", Message: fmt.Sprintf("location %s is writable", name)})
		}
	}
	return checks
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	file, err := os.CreateTemp(path, ".blackbird-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}
