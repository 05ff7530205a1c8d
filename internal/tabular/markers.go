package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// A region is a table embedded in a shared sheet, bracketed by marker
// rows whose first cell carries the marker text. Regions let one sheet
// hold the steps table, the allocation table and the expected summary
// side by side, the way testers lay their workbooks out.

// WriteRegion appends a marker-delimited table to the sheet file.
func WriteRegion(path, startMarker, endMarker string, header []string, records []Record) error {
	rows, _ := readSheet(path)

	rows = append(rows, []string{startMarker})
	rows = append(rows, header)
	for _, record := range records {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = record[name]
		}
		rows = append(rows, row)
	}
	rows = append(rows, []string{endMarker})

	return writeSheet(path, rows)
}

// ReadRegion extracts the table between the markers. Rows are sorted by
// a numeric "step" column when one is present.
func ReadRegion(path, startMarker, endMarker string) ([]Record, []string, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, nil, err
	}

	start, end := findRegion(rows, startMarker, endMarker)
	if start < 0 || end < 0 || end <= start+1 {
		return nil, nil, fmt.Errorf("no region %q..%q in %s", startMarker, endMarker, path)
	}

	header := rows[start+1]
	records := make([]Record, 0, end-start-2)
	for _, row := range rows[start+2 : end] {
		record := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}

	if len(records) > 1 {
		if _, ok := records[0]["step"]; ok {
			sort.SliceStable(records, func(i, j int) bool {
				a, _ := strconv.Atoi(records[i]["step"])
				b, _ := strconv.Atoi(records[j]["step"])
				return a < b
			})
		}
	}
	return records, header, nil
}

// DeleteRegion removes the markers and everything between them. A sheet
// without the region is left untouched.
func DeleteRegion(path, startMarker, endMarker string) error {
	rows, err := readSheet(path)
	if err != nil {
		return err
	}
	start, end := findRegion(rows, startMarker, endMarker)
	if start < 0 || end < 0 {
		return nil
	}
	return writeSheet(path, append(rows[:start], rows[end+1:]...))
}

func findRegion(rows [][]string, startMarker, endMarker string) (int, int) {
	start, end := -1, -1
	for idx, row := range rows {
		if len(row) == 0 {
			continue
		}
		if row[0] == startMarker {
			start = idx
		}
		if row[0] == endMarker {
			end = idx
		}
	}
	return start, end
}

func readSheet(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", path, err)
	}
	return rows, nil
}

func writeSheet(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("writing sheet %s: %w", path, err)
	}
	return nil
}
