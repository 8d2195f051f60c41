package folder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// validateImport checks that item.Data is well formed for its import type.
func validateImport(item ImportItem) error {
	if !utf8.ValidString(item.Data) {
		return errors.New("data is not valid UTF-8")
	}
	if item.ImportType != ImportCSV {
		return nil
	}

	r := csv.NewReader(strings.NewReader(item.Data))
	header, err := r.Read()
	if err == io.EOF {
		return errors.New("csv data is empty")
	}
	if err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, col := range header {
		if strings.TrimSpace(col) == "" {
			return errors.New("csv header has an empty column name")
		}
	}
	for {
		if _, err := r.Read(); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
}
