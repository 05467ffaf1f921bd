package ingestion

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/synaptica-ai/formrelay/pkg/common/models"
)

var ErrMalformedSubmission = errors.New("malformed submission")

type MalformedSubmissionError struct {
	Element string
	reason  error
}

func (e MalformedSubmissionError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("malformed submission element %q: %v", e.Element, e.reason)
	}
	return fmt.Sprintf("malformed submission: %v", e.reason)
}

func (e MalformedSubmissionError) Unwrap() error {
	return e.reason
}

func (e MalformedSubmissionError) Is(target error) bool {
	return target == ErrMalformedSubmission
}

func IsMalformed(err error) bool {
	var me MalformedSubmissionError
	return errors.As(err, &me)
}

// Decode turns a raw form-encoded payload into a field map. The whole payload
// is percent-decoded first ("+" becomes a space), then split on "&" and "=".
// Every element must contain exactly one "=". A repeated key keeps its last
// value.
func Decode(raw []byte) (models.FieldMap, error) {
	if !utf8.Valid(raw) {
		return nil, MalformedSubmissionError{reason: errors.New("payload is not valid UTF-8")}
	}

	text := strings.ToValidUTF8(unquotePlus(string(raw)), "\uFFFD")

	fields := make(models.FieldMap)
	for _, element := range strings.Split(text, "&") {
		parts := strings.Split(element, "=")
		if len(parts) != 2 {
			return nil, MalformedSubmissionError{
				Element: element,
				reason:  fmt.Errorf("expected one '=', found %d", len(parts)-1),
			}
		}
		fields[parts[0]] = parts[1]
	}
	return fields, nil
}

// unquotePlus decodes "+" to a space and every well-formed %XX escape to its
// byte. A "%" not followed by two hex digits is kept as is.
func unquotePlus(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
