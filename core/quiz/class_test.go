package quiz

import (
	"reflect"
	"testing"
)

func TestParseClass(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    ClassSpec
		wantErr error
	}{
		{name: "one section", s: "1-2:A", want: ClassSpec{Year: 1, Semester: 2, Sections: []string{"A"}}},
		{name: "many sections", s: "3-1:A,B,C", want: ClassSpec{Year: 3, Semester: 1, Sections: []string{"A", "B", "C"}}},
		{name: "spaces & case", s: " 4 - 1 : a, b ,c2 ", want: ClassSpec{Year: 4, Semester: 1, Sections: []string{"A", "B", "C2"}}},
		{name: "duplicates", s: "2-1:B,a,b,A", want: ClassSpec{Year: 2, Semester: 1, Sections: []string{"B", "A"}}},
		{name: "empty sections skipped", s: "2-2:A,,B,", want: ClassSpec{Year: 2, Semester: 2, Sections: []string{"A", "B"}}},
		{name: "empty", s: "", wantErr: errClassFormat},
		{name: "no sections", s: "3-1", wantErr: errClassFormat},
		{name: "blank sections", s: "3-1: , ", wantErr: errClassFormat},
		{name: "no semester", s: "3:A", wantErr: errClassFormat},
		{name: "year NaN", s: "x-1:A", wantErr: errClassFormat},
		{name: "semester NaN", s: "1-x:A", wantErr: errClassFormat},
		{name: "year 0", s: "0-1:A", wantErr: errClassYear},
		{name: "year 7", s: "7-1:A", wantErr: errClassYear},
		{name: "semester 3", s: "1-3:A", wantErr: errClassSemester},
		{name: "bad section", s: "1-1:A-B", wantErr: errClassSection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClass(tt.s)
			if err != tt.wantErr {
				t.Fatalf("ParseClass() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseClass() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatClass(t *testing.T) {
	for _, s := range []string{"1-2:A", "3-1:A,B,C", "6-2:X1"} {
		spec, err := ParseClass(s)
		if err != nil {
			t.Fatalf("ParseClass(%q) error = %v", s, err)
		}
		if got := FormatClass(spec); got != s {
			t.Errorf("FormatClass() = %q, want %q", got, s)
		}
	}
}
