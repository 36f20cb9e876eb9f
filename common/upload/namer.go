package upload

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namer builds collision-resistant file names from the client's original name.
type Namer struct {
	Now    func() time.Time
	Random func() string
}

// NewNamer returns a Namer using the wall clock and uuid randomness
func NewNamer() *Namer {
	return &Namer{Now: time.Now, Random: randomSuffix}
}

// GenerateFileName returns "<base>-<epochMillis>-<random8><ext>". The base is
// lowercased with every character outside [a-z0-9] replaced by '-'. The
// extension keeps its case.
func (n *Namer) GenerateFileName(original string) string {
	now := time.Now
	random := randomSuffix
	if n != nil && n.Now != nil {
		now = n.Now
	}
	if n != nil && n.Random != nil {
		random = n.Random
	}

	base, ext := splitName(original)
	return sanitizeBase(base) + "-" + strconv.FormatInt(now().UnixMilli(), 10) + "-" + random() + ext
}

func splitName(original string) (base, ext string) {
	if i := strings.LastIndexAny(original, `/\`); i >= 0 {
		original = original[i+1:]
	}
	if i := strings.LastIndexByte(original, '.'); i > 0 {
		if e := cleanExt(original[i+1:]); e != "" {
			return original[:i], "." + e
		}
		return original[:i], ""
	}
	return original, ""
}

// sanitizeBase lowercases base and maps every rune outside [a-z0-9] to a
// single '-'
func sanitizeBase(base string) string {
	if base == "" {
		return "file"
	}
	var sb strings.Builder
	sb.Grow(len(base))
	for _, c := range strings.ToLower(base) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			sb.WriteRune(c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// cleanExt keeps only ASCII letters and digits
func cleanExt(ext string) string {
	var sb strings.Builder
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
