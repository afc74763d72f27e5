// Package highlight implements the range algebra behind text highlighting.
// A highlight is a half-open character interval [start, end) over the plain
// text of a question or explanation, optionally carrying a color. Stored
// sets are kept normalized: sorted, non-empty, with overlapping or touching
// ranges of the same color merged. Overlapping ranges of different colors
// coexist.
package highlight

import "sort"

type Range struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Color string `json:"color,omitempty"`
}

func (r Range) Valid() bool { return r.Start >= 0 && r.End > r.Start }

func (r Range) overlapsOrTouches(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Normalize sorts the set, drops empty or negative ranges and merges
// overlapping or adjacent ranges color by color.
func Normalize(rs []Range) []Range {
	byColor := make(map[string][]Range)
	for _, r := range rs {
		if r.Valid() {
			byColor[r.Color] = append(byColor[r.Color], r)
		}
	}
	var out []Range
	for color, group := range byColor {
		sort.Slice(group, func(i, j int) bool {
			if group[i].Start != group[j].Start {
				return group[i].Start < group[j].Start
			}
			return group[i].End < group[j].End
		})
		merged := group[:1]
		for _, r := range group[1:] {
			last := &merged[len(merged)-1]
			if last.overlapsOrTouches(r) {
				if r.End > last.End {
					last.End = r.End
				}
				continue
			}
			merged = append(merged, r)
		}
		for i := range merged {
			merged[i].Color = color
		}
		out = append(out, merged...)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].End != out[j].End {
			return out[i].End < out[j].End
		}
		return out[i].Color < out[j].Color
	})
	return out
}

// Add merges one more range into the set.
func Add(rs []Range, r Range) []Range {
	if !r.Valid() {
		return Normalize(rs)
	}
	return Normalize(append(append([]Range(nil), rs...), r))
}

// Remove subtracts an interval from the set regardless of color, splitting
// ranges that straddle it. Split pieces keep their color.
func Remove(rs []Range, r Range) []Range {
	if !r.Valid() {
		return Normalize(rs)
	}
	var out []Range
	for _, h := range Normalize(rs) {
		if h.End <= r.Start || h.Start >= r.End {
			out = append(out, h)
			continue
		}
		if h.Start < r.Start {
			out = append(out, Range{Start: h.Start, End: r.Start, Color: h.Color})
		}
		if h.End > r.End {
			out = append(out, Range{Start: r.End, End: h.End, Color: h.Color})
		}
	}
	return Normalize(out)
}

// Clamp fits a stored set onto text of the given length, dropping whatever
// falls entirely outside. Persisted offsets can outlive an edit to the text
// they index, so loads go through here.
func Clamp(rs []Range, textLen int) []Range {
	if textLen <= 0 {
		return nil
	}
	out := make([]Range, 0, len(rs))
	for _, r := range rs {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > textLen {
			r.End = textLen
		}
		if r.Valid() {
			out = append(out, r)
		}
	}
	return Normalize(out)
}

// Covered reports the total number of highlighted characters: the length of
// the union over all ranges, colors collapsed.
func Covered(rs []Range) int {
	flat := make([]Range, 0, len(rs))
	for _, r := range rs {
		r.Color = ""
		flat = append(flat, r)
	}
	n := 0
	for _, r := range Normalize(flat) {
		n += r.End - r.Start
	}
	return n
}
