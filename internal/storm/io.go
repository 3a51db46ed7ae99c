package storm

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// LoadEvents loads an event dataset from a CSV file with a header row.
// Required columns: start, duration. Optional column: covariate.
// Times and durations are decimal years. The observation window is
// supplied by the caller; the loaded dataset is validated against it.
func LoadEvents(path string, window Window) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMissingData, "open events %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := map[string]int{}
	for j, name := range header {
		col[name] = j
	}
	startCol, ok := col["start"]
	if !ok {
		return nil, fmt.Errorf("events %s: missing required column %q", path, "start")
	}
	durCol, ok := col["duration"]
	if !ok {
		return nil, fmt.Errorf("events %s: missing required column %q", path, "duration")
	}
	covCol, hasCov := col["covariate"]

	var events []Event
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", row+2, len(header), len(record))
		}

		ev := Event{}
		if ev.Start, err = parseField(record, startCol, row); err != nil {
			return nil, err
		}
		if ev.Duration, err = parseField(record, durCol, row); err != nil {
			return nil, err
		}
		if hasCov {
			if ev.Covariate, err = parseField(record, covCol, row); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
		row++
	}

	d := &Dataset{Events: events, Window: window}
	if err := d.Validate(); err != nil {
		return nil, errors.Wrapf(err, "events %s", path)
	}
	return d, nil
}

func parseField(record []string, j, row int) (float64, error) {
	v, err := strconv.ParseFloat(record[j], 64)
	if err != nil {
		return 0, fmt.Errorf("parse float at row %d col %d (%q): %w", row+2, j+1, record[j], err)
	}
	return v, nil
}

// LoadCovariates loads an annual covariate table from a CSV file with a
// header row and columns: year, value. Years must be consecutive.
func LoadCovariates(path string) (CovariateTable, error) {
	var t CovariateTable

	f, err := os.Open(path)
	if err != nil {
		return t, errors.Wrapf(ErrMissingData, "open covariates %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return t, fmt.Errorf("read header: %w", err)
	}

	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, fmt.Errorf("read row %d: %w", row+2, err)
		}
		if len(record) < 2 {
			return t, fmt.Errorf("row %d: expected year,value", row+2)
		}
		year, err := strconv.Atoi(record[0])
		if err != nil {
			return t, fmt.Errorf("parse year at row %d (%q): %w", row+2, record[0], err)
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return t, fmt.Errorf("parse value at row %d (%q): %w", row+2, record[1], err)
		}
		if row == 0 {
			t.FirstYear = year
		} else if year != t.FirstYear+row {
			return t, fmt.Errorf("row %d: year %d breaks consecutive sequence starting at %d", row+2, year, t.FirstYear)
		}
		t.Values = append(t.Values, v)
		row++
	}

	if err := t.Validate(); err != nil {
		return t, errors.Wrapf(err, "covariates %s", path)
	}
	return t, nil
}

// WriteEvents writes a dataset to a CSV file with columns
// start,duration,covariate.
func WriteEvents(path string, d *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"start", "duration", "covariate"}); err != nil {
		return err
	}
	for _, ev := range d.Events {
		record := []string{
			strconv.FormatFloat(ev.Start, 'g', -1, 64),
			strconv.FormatFloat(ev.Duration, 'g', -1, 64),
			strconv.FormatFloat(ev.Covariate, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
