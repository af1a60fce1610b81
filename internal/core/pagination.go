package core

// PageWindowSize is the most contiguous page numbers shown at once.
const PageWindowSize = 5

// PageItem is one entry of the page-number bar: either a page number or an
// ellipsis gap.
type PageItem struct {
	Page     int
	Ellipsis bool
	Current  bool
}

// PageWindow builds the page-number bar for current out of total pages.
//
// At most PageWindowSize contiguous pages are shown, centered on current.
// The window is pinned to 1..5 near the start and to the last five pages
// near the end. The first and last page are always present, separated by
// an ellipsis when the window does not reach them, and never repeated.
func PageWindow(current, total int) []PageItem {
	if total <= 0 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := current - PageWindowSize/2
	end := start + PageWindowSize - 1
	if start < 1 {
		start, end = 1, PageWindowSize
	}
	if end > total {
		end = total
		start = total - PageWindowSize + 1
		if start < 1 {
			start = 1
		}
	}

	items := make([]PageItem, 0, PageWindowSize+4)
	if start > 1 {
		items = append(items, PageItem{Page: 1, Current: current == 1})
		if start > 2 {
			items = append(items, PageItem{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		items = append(items, PageItem{Page: p, Current: p == current})
	}
	if end < total {
		if end < total-1 {
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{Page: total, Current: current == total})
	}
	return items
}
