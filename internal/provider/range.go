package provider

// Range is a closed integer episode interval. The zero End means "to the
// last episode"; resolution against the known total happens at query time.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// All returns the range covering every episode.
func All() Range { return Range{Start: 1} }

// Single returns the range covering one episode.
func Single(n int) Range { return Range{Start: n, End: n} }

// Resolve clamps the range against the total episode count. An out-of-range
// End clamps to total; Start beyond total yields an empty range
// (start > end).
func (r Range) Resolve(total int) (start, end int) {
	start = r.Start
	if start < 1 {
		start = 1
	}

	end = r.End
	if end == 0 || end > total {
		end = total
	}

	return start, end
}
