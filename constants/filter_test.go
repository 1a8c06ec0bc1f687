package constants

import "testing"

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"", FilterNone, false},
		{"original", FilterNone, false},
		{"  Sepia ", FilterSepia, false},
		{"VINTAGE", FilterVintage, false},
		{"b&w", FilterBlackWhite, false},
		{"greyscale", FilterBlackWhite, false},
		{"blackwhite", FilterBlackWhite, false},
		{"pastel", FilterPastel, false},
		{"sparkle", FilterNone, true},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilter(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFiltersIsACopy(t *testing.T) {
	fs := Filters()
	if len(fs) != 8 || fs[0] != FilterNone {
		t.Fatalf("Filters() = %v", fs)
	}
	fs[0] = FilterSepia
	if Filters()[0] != FilterNone {
		t.Error("Filters() exposed its backing array")
	}
}

func TestContentTypeForExt(t *testing.T) {
	tests := map[string]string{".PNG": ContentTypePNG, "gif": "image/gif", "jpg": ContentTypeJPEG, ".jpeg": ContentTypeJPEG}
	for ext, want := range tests {
		if got := ContentTypeForExt(ext); got != want {
			t.Errorf("ContentTypeForExt(%q) = %q, want %q", ext, got, want)
		}
	}
	if IsAllowedExt(".heic") || !IsAllowedExt("JPG") {
		t.Error("IsAllowedExt mismatch")
	}
}
