package audit

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteCSV serialises timeline rows.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Timestamp", "Actor", "Action", "Entity", "Entity ID", "Details"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Meta,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
