package provider

import "testing"

func TestRangeResolve(t *testing.T) {
	tests := []struct {
		name      string
		r         Range
		total     int
		wantStart int
		wantEnd   int
	}{
		{"all episodes", All(), 12, 1, 12},
		{"single episode", Single(5), 12, 5, 5},
		{"open end", Range{Start: 3}, 12, 3, 12},
		{"end clamps to total", Range{Start: 1, End: 100}, 12, 1, 12},
		{"start below one clamps", Range{Start: -2, End: 4}, 12, 1, 4},
		{"start past total is empty", Single(20), 12, 20, 12},
		{"zero total is empty", All(), 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.r.Resolve(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Resolve(%d) = (%d, %d), want (%d, %d)",
					tt.total, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
