package repository

import (
	"reflect"
	"testing"
)

// Snapshots must always expose 24 hour buckets and 7 day-of-week buckets no
// matter what the row actually holds.
func TestPadHistogram(t *testing.T) {
	cases := []struct {
		name string
		in   []int64
		size int
		want []int64
	}{
		{"nil row", nil, 7, []int64{0, 0, 0, 0, 0, 0, 0}},
		{"empty row", []int64{}, 7, []int64{0, 0, 0, 0, 0, 0, 0}},
		{"short row keeps values", []int64{3, 1}, 7, []int64{3, 1, 0, 0, 0, 0, 0}},
		{"full row untouched", []int64{1, 2, 3, 4, 5, 6, 7}, 7, []int64{1, 2, 3, 4, 5, 6, 7}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := padHistogram(tc.in, tc.size)
			if len(got) != tc.size {
				t.Fatalf("expected length %d, got %d", tc.size, len(got))
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	hours := padHistogram(nil, 24)
	if len(hours) != 24 {
		t.Fatalf("expected 24 hour buckets, got %d", len(hours))
	}
}

func TestBoolToCount(t *testing.T) {
	if boolToCount(true) != 1 || boolToCount(false) != 0 {
		t.Fatal("boolToCount must map true to 1 and false to 0")
	}
}
