package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadMatrixCSV reads a numeric CSV file with no header into a matrix.
// Blank lines and lines starting with # are skipped.
func LoadMatrixCSV(path string) (*mat.Dense, error) {
	// 1. Open file
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// 2. Make CSV reader
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.Comment = '#'
	r.FieldsPerRecord = -1

	var (
		data []float64 // flat data for mat.Dense
		cols int       // columns in the first row
		row  int       // row counter
	)

	// 3. Read each data row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row %d: %w", path, row+1, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		if row == 0 {
			cols = len(record)
		} else if len(record) != cols {
			return nil, fmt.Errorf("%s: row %d: expected %d columns, got %d", path, row+1, cols, len(record))
		}

		for j, s := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: parse float at row %d col %d (%q): %w", path, row+1, j+1, s, err)
			}
			data = append(data, v)
		}
		row++
	}

	if row == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	// 4. Build mat.Dense
	return mat.NewDense(row, cols, data), nil
}

// LoadVectorCSV reads a single row or a single column as a vector.
func LoadVectorCSV(path string) (*mat.VecDense, error) {
	m, err := LoadMatrixCSV(path)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	switch {
	case c == 1:
		return mat.VecDenseCopyOf(m.ColView(0)), nil
	case r == 1:
		return mat.VecDenseCopyOf(m.RowView(0)), nil
	}
	return nil, fmt.Errorf("%s: expected a vector, got %dx%d", path, r, c)
}

// LoadSymCSV reads a square matrix and symmetrizes it.
func LoadSymCSV(path string) (*mat.SymDense, error) {
	m, err := LoadMatrixCSV(path)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("%s: expected a square matrix, got %dx%d", path, r, c)
	}
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s, nil
}

// optional reports whether path exists. Other stat errors are returned.
func optional(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteSeriesCSV writes a variables x periods matrix with one row per period.
// The first column is the period, counted from 1.
func WriteSeriesCSV(path string, m mat.Matrix, names []string) error {
	vars, periods := m.Dims()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if err := writeSeries(file, m, names); err != nil {
		return fmt.Errorf("write %s (%dx%d): %w", path, vars, periods, err)
	}
	return nil
}

func writeSeries(w io.Writer, m mat.Matrix, names []string) error {
	vars, periods := m.Dims()

	writer := csv.NewWriter(w)

	// Write header
	header := make([]string, vars+1)
	header[0] = "period"
	for j := 0; j < vars; j++ {
		if len(names) == vars && names[j] != "" {
			header[j+1] = names[j]
		} else {
			header[j+1] = fmt.Sprintf("var%d", j+1)
		}
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Write data rows
	record := make([]string, vars+1)
	for t := 0; t < periods; t++ {
		record[0] = strconv.Itoa(t + 1)
		for j := 0; j < vars; j++ {
			record[j+1] = strconv.FormatFloat(m.At(j, t), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// nameSlice inverts a name -> index map into a slice of length n. Positions with
// no name are left empty.
func nameSlice(index map[string]int, n int) []string {
	out := make([]string, n)
	for name, i := range index {
		if i >= 0 && i < n {
			out[i] = name
		}
	}
	return out
}

// PrintSeries prints a variables x periods matrix with one row per period.
func PrintSeries(w io.Writer, title string, m mat.Matrix, names []string) {
	vars, periods := m.Dims()

	fmt.Fprintf(w, "\n=== %s ===\n", title)

	// Print header
	fmt.Fprintf(w, "h\t")
	for j := 0; j < vars; j++ {
		name := fmt.Sprintf("var%d", j+1)
		if len(names) == vars && names[j] != "" {
			name = names[j]
		}
		fmt.Fprintf(w, "%16s", name)
	}
	fmt.Fprintln(w)

	// Print rows
	for t := 0; t < periods; t++ {
		fmt.Fprintf(w, "%d\t", t+1)
		for j := 0; j < vars; j++ {
			fmt.Fprintf(w, "%16.6f", m.At(j, t))
		}
		fmt.Fprintln(w)
	}
}

// PrintSolution prints the reduced form matrices of a gensys solution.
func PrintSolution(w io.Writer, g1, c, impact mat.Matrix, eu [2]int) {
	fmt.Fprintf(w, "\n=== gensys: eu = [%d %d] ===\n", eu[0], eu[1])
	fmt.Fprintf(w, "G1 =\n%v\n", mat.Formatted(g1, mat.Prefix(" ")))
	fmt.Fprintf(w, "C =\n%v\n", mat.Formatted(c, mat.Prefix(" ")))
	fmt.Fprintf(w, "impact =\n%v\n", mat.Formatted(impact, mat.Prefix(" ")))
}
