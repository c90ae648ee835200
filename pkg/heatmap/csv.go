package heatmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard is RFC 4180 comma-separated output.
	DialectStandard CSVDialect = "standard"

	// DialectTSV uses tabs instead of commas.
	DialectTSV CSVDialect = "tsv"
)

// CSVConfig specifies options for matrix CSV export.
type CSVConfig struct {
	// Dialect selects the delimiter.
	// Default: DialectStandard
	Dialect CSVDialect

	// Precision is the number of decimals; -1 writes the shortest exact form.
	// Default: -1
	Precision int

	// Corner is the text of the top-left header cell.
	// Default: "query\\key"
	Corner string
}

// DefaultCSVConfig returns a CSVConfig with sensible defaults.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:   DialectStandard,
		Precision: -1,
		Corner:    "query\\key",
	}
}

// WriteCSV writes m with a header row of column labels and a leading column
// of row labels. Missing labels are written as their index.
func WriteCSV(w io.Writer, m mat.Matrix, rowLabels, colLabels []string, config *CSVConfig) error {
	if config == nil {
		config = DefaultCSVConfig()
	}
	cw := csv.NewWriter(w)
	if config.Dialect == DialectTSV {
		cw.Comma = '\t'
	}

	rows, cols := m.Dims()

	header := make([]string, 0, cols+1)
	header = append(header, config.Corner)
	for j := 0; j < cols; j++ {
		header = append(header, label(colLabels, j))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, cols+1)
	for i := 0; i < rows; i++ {
		record[0] = label(rowLabels, i)
		for j := 0; j < cols; j++ {
			record[j+1] = strconv.FormatFloat(m.At(i, j), 'f', config.Precision, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i)
}
