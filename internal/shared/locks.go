package shared

import (
	"fmt"
	"time"
)

// ReportLockKey builds the redis key guarding find-or-create of a daily report.
func ReportLockKey(storeID string, reportDate time.Time) string {
	return fmt.Sprintf("report:lock:%s:%s", storeID, reportDate.Format("2006-01-02"))
}
