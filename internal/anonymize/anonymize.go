// Package anonymize replaces identifying strings (window titles, URLs) with
// stable pseudonyms before interval data leaves the system. A pseudonym is
// consistent within one export run, so records stay correlatable without
// revealing content, and is never persisted.
package anonymize

import (
	"crypto/rand"
	"log"

	"example.com/insights/internal/domain"
)

const (
	alphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength = 6
	maxAttempts = 8
)

// Anonymizer maps original tokens to pseudonyms for the lifetime of one
// export operation. Not safe for concurrent use; each export builds its own.
type Anonymizer struct {
	logger  *log.Logger
	byToken map[string]string
	issued  map[string]struct{}
}

// New constructs an empty Anonymizer.
func New(logger *log.Logger) *Anonymizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[export] ", log.LstdFlags)
	}
	return &Anonymizer{
		logger:  logger,
		byToken: make(map[string]string),
		issued:  make(map[string]struct{}),
	}
}

// Token returns the pseudonym for raw, issuing a new one on first sight.
// Empty input maps to the empty string without consuming a pseudonym slot.
func (a *Anonymizer) Token(raw string) string {
	if raw == "" {
		return ""
	}
	if pseudonym, ok := a.byToken[raw]; ok {
		return pseudonym
	}

	// Collisions would create a false correlation between two distinct
	// originals, so retry with a widened token rather than reuse.
	length := tokenLength
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := randomToken(length)
		if _, taken := a.issued[candidate]; !taken {
			a.byToken[raw] = candidate
			a.issued[candidate] = struct{}{}
			return candidate
		}
		a.logger.Printf("pseudonym collision at map size %d (attempt %d)", len(a.issued), attempt+1)
		length += 2
	}

	// With a widening token the loop above runs out only under a broken
	// entropy source; fall back to an ever-growing deterministic suffix.
	candidate := randomToken(length)
	for _, taken := a.issued[candidate]; taken; _, taken = a.issued[candidate] {
		candidate += randomToken(2)
	}
	a.byToken[raw] = candidate
	a.issued[candidate] = struct{}{}
	return candidate
}

// urlSeparators is the fixed ordered separator set. "://" must be matched
// before ":" so scheme delimiters survive as a single separator.
var urlSeparators = []string{"://", "/", ".", "?", "&", "=", "#", ":"}

// URL anonymizes every non-separator segment of a URL independently and
// re-interleaves the segments with the original separators in original order.
// The output therefore splits back into the same shape as the input, and a
// path component shared by two URLs maps to the same pseudonym in both.
func (a *Anonymizer) URL(raw string) string {
	if raw == "" {
		return ""
	}
	segments, separators := splitURL(raw)
	out := ""
	for i := 0; i < len(segments) || i < len(separators); i++ {
		if i < len(segments) {
			out += a.Token(segments[i])
		}
		if i < len(separators) {
			out += separators[i]
		}
	}
	return out
}

// Records returns export copies of the given window activities. When
// obfuscate is set, window titles and URLs are replaced; process fields and
// timestamps pass through unchanged.
func (a *Anonymizer) Records(records []domain.WindowActivity, obfuscate bool) []domain.WindowActivity {
	out := make([]domain.WindowActivity, len(records))
	for i, rec := range records {
		if obfuscate {
			rec.WindowTitle = a.Token(rec.WindowTitle)
			rec.URL = a.URL(rec.URL)
		}
		out[i] = rec
	}
	return out
}

func splitURL(raw string) (segments, separators []string) {
	current := ""
	i := 0
outer:
	for i < len(raw) {
		for _, sep := range urlSeparators {
			if len(raw)-i >= len(sep) && raw[i:i+len(sep)] == sep {
				segments = append(segments, current)
				separators = append(separators, sep)
				current = ""
				i += len(sep)
				continue outer
			}
		}
		current += raw[i : i+1]
		i++
	}
	segments = append(segments, current)
	return segments, separators
}

func randomToken(length int) string {
	buf := make([]byte, length)
	_, _ = rand.Read(buf)
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
