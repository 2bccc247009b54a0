package media

import "testing"

func TestParseSizeHint(t *testing.T) {
	tests := []struct {
		in     string
		want   SizeMetadata
		wantOK bool
	}{
		{"originalSize=5242880; format=jpeg", SizeMetadata{5242880, 5120}, true},
		{"format=jpeg;original_size=1536", SizeMetadata{1536, 1.5}, true},
		{"ORIGINAL-SIZE = 1000", SizeMetadata{1000, 0.98}, true},
		{"size=2048", SizeMetadata{2048, 2}, true},
		{"format=jpeg", SizeMetadata{}, false},
		{"thumbsize=99", SizeMetadata{}, false},
		{"", SizeMetadata{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSizeHint(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseSizeHint(%q) = (%+v, %v), want (%+v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseSizeMetadata(t *testing.T) {
	if got := ParseSizeMetadata(nil); got != nil {
		t.Errorf("nil meta = %+v, want nil", got)
	}

	got := ParseSizeMetadata(map[string]string{"x-media-info": "originalSize=2048"})
	if got == nil || got.OriginalSizeBytes != 2048 || got.OriginalSizeKilobytes != 2 {
		t.Errorf("ParseSizeMetadata = %+v", got)
	}

	if got := ParseSizeMetadata(map[string]string{"Content-Type": "size=10"}); got != nil {
		t.Errorf("unrelated key parsed: %+v", got)
	}
}
