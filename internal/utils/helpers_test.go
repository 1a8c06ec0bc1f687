package utils

import (
	"testing"
	"time"
)

func TestParseOptionalYMD(t *testing.T) {
	tests := []struct {
		in      string
		want    *time.Time
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "2024-05-04", want: ptr(time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC))},
		{in: " 2024-12-31 ", want: ptr(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))},
		{in: "2024-02-30", wantErr: true},
		{in: "May 4", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseOptionalYMD(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOptionalYMD(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseOptionalYMD(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
			t.Errorf("ParseOptionalYMD(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }
