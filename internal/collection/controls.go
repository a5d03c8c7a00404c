package collection

// PageLink is one entry in the pagination bar: either a page number or an ellipsis.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// Controls describes the pagination bar for one render.
type Controls struct {
	Visible      bool       `json:"visible"`
	Prev         int        `json:"prev"`
	Next         int        `json:"next"`
	PrevDisabled bool       `json:"prevDisabled"`
	NextDisabled bool       `json:"nextDisabled"`
	Links        []PageLink `json:"links"`
}

// Window lists the pages to show: the first page, the last page and the pages
// adjacent to current. Each run of skipped pages becomes a single ellipsis.
//
//	Window(5, 10) → 1 … 4 5 6 … 10
//	Window(1, 10) → 1 2 … 10
func Window(current, total int) []PageLink {
	if total <= 0 {
		return nil
	}

	var links []PageLink
	last := 0
	for i := 1; i <= total; i++ {
		if i != 1 && i != total && (i < current-1 || i > current+1) {
			continue
		}
		if last != 0 && i > last+1 {
			links = append(links, PageLink{Ellipsis: true})
		}
		links = append(links, PageLink{Page: i, Current: i == current})
		last = i
	}
	return links
}

// BuildControls computes the pagination bar. The bar is hidden when there is
// at most one page. Previous is inert on page 1 and Next is inert on the last page.
func BuildControls(current, total int) Controls {
	c := Controls{
		Visible:      total > 1,
		Prev:         max(current-1, 1),
		Next:         min(current+1, total),
		PrevDisabled: current <= 1,
		NextDisabled: current >= total,
	}
	if c.Next < 1 {
		c.Next = 1
	}
	if c.Visible {
		c.Links = Window(current, total)
	}
	return c
}
