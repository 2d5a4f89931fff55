package codec

import "strings"

// EnvelopePrefix marks an SMS body that carries a machine-encoded record.
const EnvelopePrefix = "$tATA"

// Wrap puts a machine string into an SMS body.
func Wrap(payload string) string {
	return EnvelopePrefix + "/" + payload
}

// Unwrap returns the machine string of an enveloped body. The body is split
// at the first "/", so payloads may contain slashes of their own.
func Unwrap(body string) (string, bool) {
	prefix, payload, found := strings.Cut(body, "/")
	if !found || prefix != EnvelopePrefix {
		return "", false
	}
	return payload, true
}
