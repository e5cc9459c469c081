package web

import (
	"fmt"
	"strings"
	"time"
)

const missingValue = "-"

// Timestamps without an offset are read in the display location, the way a
// browser reads them in local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FormatKoreanDateTime renders createdAt as "2024년 1월 15일 오후 07:30" in loc.
// Empty or unparseable input renders as "-".
func FormatKoreanDateTime(createdAt string, loc *time.Location) string {
	createdAt = strings.TrimSpace(createdAt)
	if createdAt == "" {
		return missingValue
	}
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		for _, layout := range naiveLayouts {
			if t, err = time.ParseInLocation(layout, createdAt, loc); err == nil {
				break
			}
		}
	}
	if err != nil {
		return missingValue
	}

	t = t.In(loc)
	period := "오전"
	if t.Hour() >= 12 {
		period = "오후"
	}
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d년 %d월 %d일 %s %02d:%02d", t.Year(), int(t.Month()), t.Day(), period, hour, t.Minute())
}
