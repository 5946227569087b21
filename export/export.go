// Package export renders the retention query result to the CSV history
// file and imports such files back into the store in bounded chunks.
package export

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"poptrack/storage"
)

// csvTimeLayout is the timestamp format of one CSV line: minute precision,
// zero-padded month/day/hour/minute, unpadded four-digit year.
const csvTimeLayout = "2006-01-02 15:04"

// Render formats retention query rows as CSV, one newline-terminated line
// per row: "YYYY-MM-DD HH:MM,<servers>,<players>". Daily means are rounded
// to the nearest whole count here - this is the only place rounding happens.
func Render(rows []storage.Row) []byte {
	var b bytes.Buffer
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%d,%d\n",
			r.Timestamp.Format(csvTimeLayout),
			int(math.Round(r.Servers)),
			int(math.Round(r.Players)))
	}
	return b.Bytes()
}

// WriteFile truncates path and writes the full export. Each export rewrites
// the file from scratch; nothing is ever appended.
func WriteFile(path string, rows []storage.Row) error {
	if err := os.WriteFile(path, Render(rows), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}
