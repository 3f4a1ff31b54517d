package punctuate

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// Mapper places classified pauses onto recognized words.
type Mapper struct {
	FrameDuration time.Duration
}

// Map renders words as a sentence with the punctuation of pauses. Pause
// offsets are converted to seconds and attached to the last word starting
// strictly before that time, so a pause at a word boundary belongs to the
// preceding word. Pauses at or before the first word's start are dropped. The
// word after a full stop is capitalized and, when any pause was attached,
// the sentence ends with a full stop. words must be ordered by Start.
func (m Mapper) Map(words []transcribe.WordTiming, pauses map[int]Class) string {
	if len(words) == 0 {
		return ""
	}

	marks := make([]Class, len(words))
	attached := false
	for off, cls := range pauses {
		at := (time.Duration(off) * m.FrameDuration).Seconds()
		i := sort.Search(len(words), func(i int) bool { return words[i].Start >= at }) - 1
		if i < 0 {
			continue
		}
		if cls > marks[i] {
			marks[i] = cls
		}
		attached = true
	}
	if attached {
		marks[len(marks)-1] = FullStop
	}

	var b strings.Builder
	capitalizeNext := false
	for i, w := range words {
		text := w.Word
		if capitalizeNext {
			text = capitalize(text)
		}
		b.WriteString(text)
		b.WriteString(marks[i].Mark())
		b.WriteByte(' ')
		capitalizeNext = marks[i] == FullStop
	}
	return strings.TrimSpace(b.String())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
