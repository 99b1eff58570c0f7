package library

import "math/rand"

// Page is one slice of the shuffled sequence plus pagination metadata.
type Page struct {
	Items      []Item `json:"images"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
}

// Shuffled returns the content pool in a deterministic order for the given
// seed (typically the session id). A seeded Fisher-Yates shuffle guarantees
// the same seed and the same pool always yield the same order; a fresh
// discovery changes all orders.
func (l *Library) Shuffled(seed int64) []Item {
	items := l.Items()
	shuffled := make([]Item, len(items))
	copy(shuffled, items)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Paginate returns the requested page of the shuffled sequence. Page numbers
// are 1-indexed and clamped into the valid range rather than erroring.
func (l *Library) Paginate(seed int64, page, perPage int) Page {
	if perPage < 1 {
		perPage = 1
	}

	all := l.Shuffled(seed)
	total := len(all)
	totalPages := (total + perPage - 1) / perPage

	if totalPages > 0 {
		if page < 1 {
			page = 1
		} else if page > totalPages {
			page = totalPages
		}
	} else {
		page = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items:      all[start:end],
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
