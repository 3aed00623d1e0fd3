package workschedule

import (
	"testing"
	"time"
)

func TestParseWeekdays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []time.Weekday
	}{
		{name: "numeric codes", raw: "1,2,3,4,5", want: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
		{name: "names are case insensitive", raw: "monday, WEDNESDAY ,Friday", want: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{name: "mixed names and codes collapse duplicates", raw: "Monday,1,mon,0", want: []time.Weekday{time.Sunday, time.Monday}},
		{name: "alternate delimiters", raw: "Sat;Sun|2 3", want: []time.Weekday{time.Sunday, time.Tuesday, time.Wednesday, time.Saturday}},
		{name: "unknown tokens dropped", raw: "Funday,7,-1,x,4", want: []time.Weekday{time.Thursday}},
		{name: "blank input", raw: "   ", want: []time.Weekday{}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseWeekdays(tc.raw).Days()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestWeekdaySet_Allows(t *testing.T) {
	t.Parallel()

	t.Run("empty set allows every day", func(t *testing.T) {
		t.Parallel()

		var set WeekdaySet
		for day := time.Sunday; day <= time.Saturday; day++ {
			if !set.Allows(day) {
				t.Fatalf("expected empty set to allow %s", day)
			}
		}
	})

	t.Run("non-empty set restricts", func(t *testing.T) {
		t.Parallel()

		set := NewWeekdaySet(time.Monday, time.Friday)
		if !set.Allows(time.Monday) || !set.Allows(time.Friday) {
			t.Fatalf("expected Monday and Friday to be allowed")
		}
		if set.Allows(time.Saturday) {
			t.Fatalf("expected Saturday to be rejected")
		}
	})
}

func TestSerializeWeekdays(t *testing.T) {
	t.Parallel()

	set := ParseWeekdays("5,1,3")
	if got := SerializeWeekdays(set); got != "Monday,Wednesday,Friday" {
		t.Fatalf("unexpected serialization: %q", got)
	}
	if ParseWeekdays(SerializeWeekdays(set)) != set {
		t.Fatalf("expected serialization to round trip")
	}
	if got := SerializeWeekdays(0); got != "" {
		t.Fatalf("expected empty serialization, got %q", got)
	}
}
