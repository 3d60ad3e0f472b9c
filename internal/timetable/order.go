package timetable

import (
	"sort"
	"strings"
)

// SortEntries orders entries Monday to Sunday, then by start time. Times are zero-padded
// 24-hour strings so lexicographic order is chronological.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := dayIndex(entries[i].Day), dayIndex(entries[j].Day)
		if di != dj {
			return di < dj
		}
		return entries[i].StartTime < entries[j].StartTime
	})
}

// ApplyFilter keeps entries whose day equals f.Day and whose subject contains f.Subject,
// both compared case-insensitively. A set ClassID must match exactly.
func ApplyFilter(entries []Entry, f Filter) []Entry {
	day := strings.TrimSpace(f.Day)
	subject := strings.ToLower(strings.TrimSpace(f.Subject))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if day != "" && !strings.EqualFold(e.Day, day) {
			continue
		}
		if subject != "" && !strings.Contains(strings.ToLower(e.Subject), subject) {
			continue
		}
		if f.ClassID != "" && e.ClassID != f.ClassID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// TotalPages is ceil(count/pageSize), never below 1.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Paginate returns entries[(page-1)*pageSize : page*pageSize], clipped to the slice.
func Paginate(entries []Entry, page, pageSize int) []Entry {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return []Entry{}
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return []Entry{}
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	out := make([]Entry, end-start)
	copy(out, entries[start:end])
	return out
}

// BuildView filters entries and cuts out one page.
func BuildView(entries []Entry, f Filter, page, pageSize int) View {
	if page < 1 {
		page = 1
	}
	filtered := ApplyFilter(entries, f)
	return View{
		Entries:    Paginate(filtered, page, pageSize),
		Filter:     f,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(len(filtered), pageSize),
		Total:      len(filtered),
	}
}
