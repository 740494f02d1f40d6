package watch

import (
	"errors"
	"testing"
)

func TestDefaultTableEveryHour(t *testing.T) {
	t.Parallel()
	want := map[int]string{
		0: "middle watch", 3: "middle watch",
		4: "morning watch", 7: "morning watch",
		8: "forenoon watch", 11: "forenoon watch",
		12: "afternoon watch", 15: "afternoon watch",
		16: "1st dog watch", 17: "1st dog watch",
		18: "last dog watch", 19: "last dog watch",
		20: "first watch", 23: "first watch",
	}
	tbl := Default()
	for hour := 0; hour < 24; hour++ {
		name, err := tbl.For(hour)
		if err != nil {
			t.Fatalf("For(%d) error: %v", hour, err)
		}
		matches := 0
		for _, r := range tbl.ranges {
			if r.contains(hour) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("hour %d matched %d ranges, want 1", hour, matches)
		}
		if w, ok := want[hour]; ok && name != w {
			t.Fatalf("For(%d) = %q, want %q", hour, name, w)
		}
	}
}

func TestForOutOfRange(t *testing.T) {
	t.Parallel()
	_, err := Default().For(24)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("For(24) error = %v, want ConfigError", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ranges []Range
		ok     bool
	}{
		{name: "default", ranges: Default().ranges, ok: true},
		{name: "two halves", ranges: []Range{{0, 12, "am"}, {12, 24, "pm"}}, ok: true},
		{name: "unordered", ranges: []Range{{12, 24, "pm"}, {0, 12, "am"}}, ok: true},
		{name: "empty", ranges: nil},
		{name: "gap", ranges: []Range{{0, 10, "a"}, {12, 24, "b"}}},
		{name: "overlap", ranges: []Range{{0, 13, "a"}, {12, 24, "b"}}},
		{name: "short", ranges: []Range{{0, 20, "a"}}},
		{name: "inverted", ranges: []Range{{0, 24, "a"}, {5, 3, "b"}}},
		{name: "unnamed", ranges: []Range{{0, 24, " "}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ranges)
			if tt.ok && err != nil {
				t.Fatalf("New error: %v", err)
			}
			if !tt.ok {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Fatalf("New error = %v, want ConfigError", err)
				}
			}
		})
	}
}
