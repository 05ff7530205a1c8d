// Package tabular handles the flat-file interchange with testers:
// header-keyed CSV records for stage inputs and outputs, and
// marker-delimited regions that let several tables share one sheet.
package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Record is one CSV row keyed by header name.
type Record map[string]string

// ReadRecords reads a CSV file whose first row is the header.
func ReadRecords(path string) ([]Record, error) {
	_, records, err := ReadTable(path)
	return records, err
}

// ReadTable reads a CSV file and returns its header in column order
// alongside the records.
func ReadTable(path string) ([]string, []Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s has no header row", path)
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}
	return header, records, nil
}

// WriteRecords writes records under the given header, replacing the
// file. Missing fields become empty cells.
func WriteRecords(path string, header []string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header to %s: %w", path, err)
	}
	for _, record := range records {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = record[name]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row to %s: %w", path, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// AppendRecords appends records to an existing CSV file. Columns the
// file does not know yet extend its header; earlier rows get empty
// cells for them. A missing file is created with the given header.
func AppendRecords(path string, header []string, records []Record) error {
	existingHeader := headerOf(path)
	if existingHeader == nil {
		return WriteRecords(path, header, records)
	}
	existing, err := ReadRecords(path)
	if err != nil {
		return err
	}

	merged := existingHeader
	known := make(map[string]bool, len(existingHeader))
	for _, name := range existingHeader {
		known[name] = true
	}
	for _, name := range header {
		if !known[name] {
			known[name] = true
			merged = append(merged, name)
		}
	}
	return WriteRecords(path, merged, append(existing, records...))
}

func headerOf(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil
	}
	return header
}

// RecordsFromJSON flattens a JSON array of objects into records. Nested
// values (arrays, objects) are kept as compact JSON text in their cell,
// numbers and booleans are stringified.
func RecordsFromJSON(items []json.RawMessage) ([]Record, []string, error) {
	records := make([]Record, 0, len(items))
	seen := make(map[string]bool)
	var header []string

	for _, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, nil, fmt.Errorf("flattening artifact row: %w", err)
		}
		record := make(Record, len(obj))
		for key, value := range obj {
			record[key] = cellText(value)
			if !seen[key] {
				seen[key] = true
				header = append(header, key)
			}
		}
		records = append(records, record)
	}
	sort.Strings(header)
	return records, header, nil
}

func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
