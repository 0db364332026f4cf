package generator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Output file names written by WriteDataset.
const (
	TransactionsFile = "transactions.csv"
	CommunitiesFile  = "fraud_community.json"
)

// WriteDataset serializes the dataset into transactions.csv and
// fraud_community.json under the provided directory.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	txPath := filepath.Join(dir, TransactionsFile)
	file, err := os.Create(txPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", txPath, err)
	}
	if err := WriteCSV(file, dataset.Rows); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", txPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", txPath, err)
	}

	return writeJSON(filepath.Join(dir, CommunitiesFile), dataset.Communities)
}

// WriteCSV writes rows under the Columns header.
func WriteCSV(w io.Writer, rows []domain.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	record := make([]string, len(Columns))
	for _, row := range rows {
		for i, col := range Columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
