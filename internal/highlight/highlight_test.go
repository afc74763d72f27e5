package highlight

import (
	"reflect"
	"testing"
)

func span(start, end int) Range { return Range{Start: start, End: end} }

func colored(start, end int, color string) Range {
	return Range{Start: start, End: end, Color: color}
}

func TestNormalizeMergesOverlapAndTouch(t *testing.T) {
	cases := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"empty", nil, nil},
		{"single", []Range{span(2, 5)}, []Range{span(2, 5)}},
		{"overlap", []Range{span(2, 5), span(4, 8)}, []Range{span(2, 8)}},
		{"touching", []Range{span(2, 5), span(5, 8)}, []Range{span(2, 8)}},
		{"disjoint", []Range{span(8, 9), span(2, 5)}, []Range{span(2, 5), span(8, 9)}},
		{"contained", []Range{span(2, 10), span(4, 6)}, []Range{span(2, 10)}},
		{"drops invalid", []Range{span(5, 5), span(-3, -1), span(2, 4)}, []Range{span(2, 4)}},
		{"chain", []Range{span(0, 2), span(2, 4), span(4, 6)}, []Range{span(0, 6)}},
		{
			"same color merges",
			[]Range{colored(0, 5, "yellow"), colored(5, 10, "yellow")},
			[]Range{colored(0, 10, "yellow")},
		},
		{
			"different colors stay apart",
			[]Range{colored(0, 5, "yellow"), colored(5, 10, "green")},
			[]Range{colored(0, 5, "yellow"), colored(5, 10, "green")},
		},
		{
			"interleaved color",
			[]Range{colored(0, 5, "yellow"), colored(2, 8, "green"), colored(4, 9, "yellow")},
			[]Range{colored(0, 9, "yellow"), colored(2, 8, "green")},
		},
		{
			"overlapping colors coexist",
			[]Range{colored(2, 6, "green"), span(2, 6)},
			[]Range{span(2, 6), colored(2, 6, "green")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	set := Add(nil, span(10, 14))
	set = Add(set, span(2, 5))
	set = Add(set, span(4, 11))
	want := []Range{span(2, 14)}
	if !reflect.DeepEqual(set, want) {
		t.Fatalf("set = %v, want %v", set, want)
	}
	if got := Add(set, span(7, 7)); !reflect.DeepEqual(got, want) {
		t.Fatalf("empty add changed the set: %v", got)
	}
	if got := Add(set, span(3, 12)); !reflect.DeepEqual(got, want) {
		t.Fatalf("re-adding a covered span changed the set: %v", got)
	}
}

func TestRemove(t *testing.T) {
	cases := []struct {
		name string
		in   []Range
		cut  Range
		want []Range
	}{
		{"miss", []Range{span(2, 5)}, span(6, 9), []Range{span(2, 5)}},
		{"exact", []Range{span(2, 5)}, span(2, 5), nil},
		{"split", []Range{span(2, 10)}, span(4, 6), []Range{span(2, 4), span(6, 10)}},
		{"trim head", []Range{span(2, 10)}, span(0, 4), []Range{span(4, 10)}},
		{"trim tail", []Range{span(2, 10)}, span(8, 12), []Range{span(2, 8)}},
		{"across two", []Range{span(2, 5), span(7, 10)}, span(4, 8), []Range{span(2, 4), span(8, 10)}},
		{
			"erases every color",
			[]Range{colored(2, 8, "yellow"), colored(4, 10, "green")},
			span(5, 6),
			[]Range{
				colored(2, 5, "yellow"),
				colored(4, 5, "green"),
				colored(6, 8, "yellow"),
				colored(6, 10, "green"),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Remove(tc.in, tc.cut)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Remove(%v, %v) = %v, want %v", tc.in, tc.cut, got, tc.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	in := []Range{span(-2, 4), span(10, 30), span(40, 50)}
	want := []Range{span(0, 4), span(10, 20)}
	if got := Clamp(in, 20); !reflect.DeepEqual(got, want) {
		t.Fatalf("Clamp = %v, want %v", got, want)
	}
	if got := Clamp(in, 0); got != nil {
		t.Fatalf("Clamp onto empty text = %v, want nil", got)
	}
}

func TestCovered(t *testing.T) {
	if got := Covered([]Range{span(0, 3), span(2, 6), span(10, 11)}); got != 7 {
		t.Fatalf("Covered = %d, want 7", got)
	}
	overlapping := []Range{colored(0, 4, "yellow"), colored(2, 6, "green")}
	if got := Covered(overlapping); got != 6 {
		t.Fatalf("Covered across colors = %d, want 6", got)
	}
}
