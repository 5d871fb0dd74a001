package dataset

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed demo.csv
var demoCSV []byte

const DemoFilename = "demo.csv"

// materializeDemo writes the bundled demo CSV to path unless it already exists.
func materializeDemo(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, demoCSV, 0o644); err != nil {
		return fmt.Errorf("write demo csv: %w", err)
	}
	return nil
}
