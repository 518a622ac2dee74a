package enums

import "fmt"

// BookFormat describes the physical or digital format of a listed copy.
type BookFormat string

const (
	BookFormatHardcover BookFormat = "hardcover"
	BookFormatPaperback BookFormat = "paperback"
	BookFormatEbook     BookFormat = "ebook"
	BookFormatAudiobook BookFormat = "audiobook"
)

var validBookFormats = []BookFormat{
	BookFormatHardcover,
	BookFormatPaperback,
	BookFormatEbook,
	BookFormatAudiobook,
}

// String implements fmt.Stringer.
func (b BookFormat) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookFormat.
func (b BookFormat) IsValid() bool {
	for _, candidate := range validBookFormats {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBookFormat converts raw input into a BookFormat.
func ParseBookFormat(value string) (BookFormat, error) {
	for _, candidate := range validBookFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book format %q", value)
}
