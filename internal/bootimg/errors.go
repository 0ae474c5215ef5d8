package bootimg

import "fmt"

// FormatError reports a header that could not be recognized or decoded:
// an unknown magic, an unsupported header version, or declared section
// geometry that does not fit the image. A FormatError from Parse means
// no manifest was produced.
type FormatError struct {
	Offset int    // byte offset of the offending field
	Reason string // what was wrong
	Want   string // expected value, if applicable
	Got    string // found value, if applicable
}

func (e *FormatError) Error() string {
	if e.Want != "" || e.Got != "" {
		return fmt.Sprintf("%s at offset %d: want %s, got %s", e.Reason, e.Offset, e.Want, e.Got)
	}
	return fmt.Sprintf("%s at offset %d", e.Reason, e.Offset)
}
