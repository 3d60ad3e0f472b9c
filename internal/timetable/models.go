package timetable

import "strings"

// Weekdays is the fixed display order of the timetable.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Entry is one weekly class slot. JSON keeps startTime/endTime while storage uses start_time/end_time.
type Entry struct {
	ID        string `json:"id" bson:"_id"`
	Day       string `json:"day" bson:"day" validate:"required,weekday"`
	Subject   string `json:"subject" bson:"subject" validate:"required"`
	StartTime string `json:"startTime" bson:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"endTime" bson:"end_time" validate:"required,hhmm"`
	Location  string `json:"location" bson:"location"`
	Professor string `json:"professor" bson:"professor"`
	ClassID   string `json:"class_id,omitempty" bson:"class_id,omitempty"`
}

// Filter narrows the timetable view. Empty fields match everything.
type Filter struct {
	Day     string `json:"day" query:"day"`
	Subject string `json:"subject" query:"subject"`
	ClassID string `json:"class_id,omitempty" query:"class_id"`
}

// View is one page of a filtered timetable.
type View struct {
	Entries    []Entry `json:"entries"`
	Filter     Filter  `json:"filter"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	Total      int     `json:"total"`
}

// UploadRequest is the JSON body of a timetable upload.
type UploadRequest struct {
	Entries []Entry `json:"entries"`
	Replace bool    `json:"replace"`
}

// dayIndex returns the position of day in Weekdays, or len(Weekdays) for unknown days.
func dayIndex(day string) int {
	for i, d := range Weekdays {
		if strings.EqualFold(d, strings.TrimSpace(day)) {
			return i
		}
	}
	return len(Weekdays)
}

// canonicalDay title-cases a known weekday name and leaves anything else untouched.
func canonicalDay(day string) string {
	if i := dayIndex(day); i < len(Weekdays) {
		return Weekdays[i]
	}
	return day
}
