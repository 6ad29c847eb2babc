package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// dateLayout is the DD-MM-YY date embedded in snapshot file names.
const dateLayout = "02-01-06"

// DateLabel formats t as the file-name date.
func DateLabel(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate accepts DD-MM-YY, DD-MM-YYYY or YYYY-MM-DD and returns the day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "02-01-2006", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want DD-MM-YY", s)
}

// FileName renders the snapshot file name for date. pattern holds one %s verb;
// an empty pattern uses the default.
func FileName(pattern string, date time.Time) string {
	if pattern == "" {
		pattern = model.DefaultFilePattern
	}
	return fmt.Sprintf(pattern, DateLabel(date))
}
