package codec

import "strings"

// Reserved symbols of the machine wire format.
const (
	Delimiter   = " "
	SpaceEscape = "_"
	NullMarker  = "*"
	EmptyMarker = ";"

	trueMarker  = "t"
	falseMarker = "f"
)

// Escape makes text fit in exactly one token. The replacement order matters:
// real underscores are doubled before spaces are turned into underscores.
//
// Strings that already contain "_" do not survive Escape/Unescape; the wire
// format is shared with deployed devices so this is kept as is.
func Escape(text string) string {
	if text == "" {
		return EmptyMarker
	}
	text = strings.ReplaceAll(text, SpaceEscape, SpaceEscape+SpaceEscape)
	text = strings.ReplaceAll(text, Delimiter+Delimiter, strings.Repeat(SpaceEscape, 4))
	text = strings.ReplaceAll(text, Delimiter, SpaceEscape)
	text = strings.ReplaceAll(text, NullMarker, NullMarker+NullMarker)
	text = strings.ReplaceAll(text, EmptyMarker, EmptyMarker+EmptyMarker)
	return text
}

// Unescape reverses Escape.
func Unescape(token string) string {
	if token == EmptyMarker {
		return ""
	}
	token = strings.ReplaceAll(token, SpaceEscape+SpaceEscape, SpaceEscape)
	token = strings.ReplaceAll(token, SpaceEscape, Delimiter)
	token = strings.ReplaceAll(token, NullMarker+NullMarker, NullMarker)
	token = strings.ReplaceAll(token, EmptyMarker+EmptyMarker, EmptyMarker)
	return token
}

// Tokenize splits a stream on runs of the delimiter and drops empty tokens.
func Tokenize(stream string) []string {
	return strings.FieldsFunc(stream, func(r rune) bool { return r == ' ' })
}
