// Package codec turns Protector and Watcher records into compact SMS-sized
// strings and back.
//
// Two codecs share one interface: the machine codec is a reversible,
// strictly positional token stream; the human codec renders reports as prose
// and parses a handful of typed commands.
package codec

import (
	"errors"

	"tata-codec/internal/model"
)

// Serializer is implemented by every codec direction pair.
type Serializer[T any] interface {
	Serialize(v T) string
	Deserialize(s string) (T, error)
}

var (
	// framing
	ErrTruncated = errors.New("token stream too short")
	ErrTrailing  = errors.New("unconsumed tokens after record")

	// values
	ErrBadFlag    = errors.New("flag is neither t nor f")
	ErrOutOfRange = errors.New("enum ordinal out of range")
	ErrBadNumber  = errors.New("malformed base-36 number")

	ErrUnsupported    = errors.New("direction not supported by this codec")
	ErrUnknownCommand = errors.New("unknown command")
)

// ErrorKind buckets a codec error: "framing", "value", "unsupported",
// "command" or "other".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTruncated), errors.Is(err, ErrTrailing):
		return "framing"
	case errors.Is(err, ErrBadFlag), errors.Is(err, ErrOutOfRange), errors.Is(err, ErrBadNumber):
		return "value"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrUnknownCommand):
		return "command"
	}
	return "other"
}

var (
	_ Serializer[model.Protector] = ProtectorMachine{}
	_ Serializer[model.Watcher]   = WatcherMachine{}
	_ Serializer[model.Protector] = ProtectorHuman{}
	_ Serializer[model.Watcher]   = WatcherHuman{}
)
