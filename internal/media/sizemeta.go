package media

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// SizeHintKey is the metadata key fetch collaborators use to carry the
// size-before-compression hint, e.g. "originalSize=5242880; format=jpeg".
const SizeHintKey = "X-Media-Info"

// SizeMetadata is the original (pre-compression) size of a resource.
type SizeMetadata struct {
	OriginalSizeBytes     int64   `json:"originalSizeBytes"`
	OriginalSizeKilobytes float64 `json:"originalSizeKilobytes"`
}

var sizePattern = regexp.MustCompile(`(?i)(?:^|[;,&\s])(?:original[_-]?size|size)\s*=\s*(\d+)`)

// ParseSizeHint extracts the size from a delimited key=value string.
// It returns false when no size pair is present.
func ParseSizeHint(s string) (SizeMetadata, bool) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return SizeMetadata{}, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return SizeMetadata{}, false
	}
	return SizeMetadata{
		OriginalSizeBytes:     n,
		OriginalSizeKilobytes: math.Round(float64(n)/1024*100) / 100,
	}, true
}

// ParseSizeMetadata looks up SizeHintKey in meta, case-insensitively, and
// parses it. It returns nil when the hint is missing or malformed.
func ParseSizeMetadata(meta map[string]string) *SizeMetadata {
	for k, v := range meta {
		if !strings.EqualFold(k, SizeHintKey) {
			continue
		}
		if sm, ok := ParseSizeHint(v); ok {
			return &sm
		}
	}
	return nil
}
