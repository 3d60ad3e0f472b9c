package timetable

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ExportHeader is the header row written by WriteCSV.
var ExportHeader = []string{"Course Code", "Course Name", "Day", "Start Time", "End Time", "Professor", "Room"}

const (
	defaultDay       = "Monday"
	defaultStartTime = "09:00"
	defaultEndTime   = "10:30"
	defaultUnknown   = "N/A"
)

type columns struct {
	code, subject, day, start, end, professor, room int
}

// locateColumns finds each column by case-insensitive substring of the header name.
func locateColumns(header []string) columns {
	find := func(keys ...string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, k := range keys {
				if strings.Contains(h, k) {
					return i
				}
			}
		}
		return -1
	}
	return columns{
		code:      find("code"),
		subject:   find("name", "subject"),
		day:       find("day"),
		start:     find("start"),
		end:       find("end"),
		professor: find("professor"),
		room:      find("room", "location"),
	}
}

// ParseCSV reads timetable rows. The first non-blank line is the header; missing columns and
// empty cells fall back to defaults.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read timetable csv")
	}

	var rows [][]string
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, errors.New("timetable csv has no header row")
	}

	cols := locateColumns(rows[0])
	entries := make([]Entry, 0, len(rows)-1)
	for i, rec := range rows[1:] {
		cell := func(idx int, def string) string {
			if idx < 0 || idx >= len(rec) {
				return def
			}
			if v := strings.TrimSpace(rec[idx]); v != "" {
				return v
			}
			return def
		}
		entries = append(entries, Entry{
			ClassID:   cell(cols.code, ""),
			Subject:   cell(cols.subject, fmt.Sprintf("Course %d", i+1)),
			Day:       cell(cols.day, defaultDay),
			StartTime: cell(cols.start, defaultStartTime),
			EndTime:   cell(cols.end, defaultEndTime),
			Professor: cell(cols.professor, defaultUnknown),
			Location:  cell(cols.room, defaultUnknown),
		})
	}
	return entries, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes entries under ExportHeader.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write([]string{e.ClassID, e.Subject, e.Day, e.StartTime, e.EndTime, e.Professor, e.Location}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
