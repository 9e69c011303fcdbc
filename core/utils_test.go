package core

import (
	"reflect"
	"testing"
)

func TestCleanStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "blanks dropped", in: []string{" ", "a", ""}, want: []string{"a"}},
		{name: "trimmed & deduped", in: []string{" a", "b", "a ", "b"}, want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanStrings(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CleanStrings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifferenceAndIntersection(t *testing.T) {
	a := []string{"s1", "s2", "s3"}
	b := []string{"s2", "s4"}

	if got, want := Difference(a, b), []string{"s1", "s3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Difference() = %v, want %v", got, want)
	}
	if got, want := Intersection(a, b), []string{"s2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Intersection() = %v, want %v", got, want)
	}
	if got := Difference(nil, b); len(got) != 0 {
		t.Errorf("Difference(nil) = %v, want empty", got)
	}
}
