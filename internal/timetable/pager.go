package timetable

import "sync"

// DefaultPageSize is the number of timetable rows per page.
const DefaultPageSize = 10

// Pager is the filter and page position of one timetable view.
type Pager struct {
	mu       sync.Mutex
	filter   Filter
	page     int
	pageSize int
	filtered []Entry
}

// NewPager creates a Pager on page 1 with no filter.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{page: 1, pageSize: pageSize, filtered: []Entry{}}
}

// ApplyFilters filters data with f and goes back to page 1, so a narrower filter never
// leaves the view on an out-of-range empty page.
func (p *Pager) ApplyFilters(data []Entry, f Filter) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
	p.filtered = ApplyFilter(data, f)
	p.page = 1
	return p.view()
}

// Reload re-applies the current filter to fresh data, keeping the page when it still exists.
func (p *Pager) Reload(data []Entry) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filtered = ApplyFilter(data, p.filter)
	if total := TotalPages(len(p.filtered), p.pageSize); p.page > total {
		p.page = total
	}
	return p.view()
}

// Paginate moves to page of the filtered set.
func (p *Pager) Paginate(page int) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 1 {
		page = 1
	}
	p.page = page
	return p.view()
}

// View is the current page.
func (p *Pager) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view()
}

func (p *Pager) view() View {
	return View{
		Entries:    Paginate(p.filtered, p.page, p.pageSize),
		Filter:     p.filter,
		Page:       p.page,
		PageSize:   p.pageSize,
		TotalPages: TotalPages(len(p.filtered), p.pageSize),
		Total:      len(p.filtered),
	}
}
