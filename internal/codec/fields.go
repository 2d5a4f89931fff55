package codec

import (
	"fmt"
	"strings"

	"tata-codec/internal/model"
)

// field is one entry of a record's layout. The same list drives encoding
// and decoding, so both directions always agree on order and arity.
type field struct {
	encode func(w *tokenWriter)
	decode func(r *tokenReader) error
}

type tokenWriter struct {
	tokens []string
}

func (w *tokenWriter) put(tok string) { w.tokens = append(w.tokens, tok) }

func (w *tokenWriter) String() string { return strings.Join(w.tokens, Delimiter) }

type tokenReader struct {
	tokens []string
	pos    int
}

func (r *tokenReader) peek() (string, bool) {
	if r.pos >= len(r.tokens) {
		return "", false
	}
	return r.tokens[r.pos], true
}

func (r *tokenReader) next() (string, error) {
	tok, ok := r.peek()
	if !ok {
		return "", fmt.Errorf("token %d: %w", r.pos, ErrTruncated)
	}
	r.pos++
	return tok, nil
}

func (r *tokenReader) number() (int64, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	v, err := ParseInt36(tok)
	if err != nil {
		return 0, fmt.Errorf("token %d %q: %w", r.pos-1, tok, ErrBadNumber)
	}
	return v, nil
}

func encodeFields(fields []field) string {
	w := &tokenWriter{}
	for _, f := range fields {
		f.encode(w)
	}
	return w.String()
}

func decodeFields(stream string, fields []field) error {
	r := &tokenReader{tokens: Tokenize(stream)}
	for _, f := range fields {
		if err := f.decode(r); err != nil {
			return err
		}
	}
	if r.pos != len(r.tokens) {
		return fmt.Errorf("%d of %d tokens used: %w", r.pos, len(r.tokens), ErrTrailing)
	}
	return nil
}

/* ---------------------------- primitives ---------------------------- */

func flagField(v *bool) field {
	return field{
		encode: func(w *tokenWriter) {
			if *v {
				w.put(trueMarker)
			} else {
				w.put(falseMarker)
			}
		},
		decode: func(r *tokenReader) error {
			tok, err := r.next()
			if err != nil {
				return err
			}
			switch tok {
			case trueMarker:
				*v = true
			case falseMarker:
				*v = false
			default:
				return fmt.Errorf("token %d %q: %w", r.pos-1, tok, ErrBadFlag)
			}
			return nil
		},
	}
}

func float32Field(v *float32) field {
	return field{
		encode: func(w *tokenWriter) { w.put(FormatInt36(Quantize32(*v))) },
		decode: func(r *tokenReader) error {
			n, err := r.number()
			if err != nil {
				return err
			}
			*v = Dequantize32(n)
			return nil
		},
	}
}

func float64Field(v *float64) field {
	return field{
		encode: func(w *tokenWriter) { w.put(FormatInt36(Quantize64(*v))) },
		decode: func(r *tokenReader) error {
			n, err := r.number()
			if err != nil {
				return err
			}
			*v = Dequantize64(n)
			return nil
		},
	}
}

func int64Field(v *int64) field {
	return field{
		encode: func(w *tokenWriter) { w.put(FormatInt36(*v)) },
		decode: func(r *tokenReader) error {
			n, err := r.number()
			if err != nil {
				return err
			}
			*v = n
			return nil
		},
	}
}

func stringField(v *string) field {
	return field{
		encode: func(w *tokenWriter) { w.put(Escape(*v)) },
		decode: func(r *tokenReader) error {
			tok, err := r.next()
			if err != nil {
				return err
			}
			*v = Unescape(tok)
			return nil
		},
	}
}

// enumField writes the ordinal and rejects anything valid does not accept.
func enumField[E ~int](v *E, valid func(E) bool) field {
	return field{
		encode: func(w *tokenWriter) { w.put(FormatInt36(int64(*v))) },
		decode: func(r *tokenReader) error {
			n, err := r.number()
			if err != nil {
				return err
			}
			e := E(n)
			if int64(e) != n || !valid(e) {
				return fmt.Errorf("ordinal %d: %w", n, ErrOutOfRange)
			}
			*v = e
			return nil
		},
	}
}

/* ---------------------------- combinators --------------------------- */

// nullable writes NullMarker for nil, otherwise the value's own tokens with
// no marker in front. On decode it peeks: a NullMarker is consumed, any other
// token is left for the value's layout to read.
func nullable[T any](v **T, layout func(*T) []field) field {
	return field{
		encode: func(w *tokenWriter) {
			if *v == nil {
				w.put(NullMarker)
				return
			}
			for _, f := range layout(*v) {
				f.encode(w)
			}
		},
		decode: func(r *tokenReader) error {
			tok, ok := r.peek()
			if !ok {
				return fmt.Errorf("token %d: %w", r.pos, ErrTruncated)
			}
			if tok == NullMarker {
				r.pos++
				*v = nil
				return nil
			}
			val := new(T)
			for _, f := range layout(val) {
				if err := f.decode(r); err != nil {
					return err
				}
			}
			*v = val
			return nil
		},
	}
}

/* ------------------------------ layouts ----------------------------- */

func positionLayout(p *model.Position) []field {
	return []field{
		float64Field(&p.Latitude),
		float64Field(&p.Longitude),
	}
}

func carLocationLayout(c *model.CarLocation) []field {
	return append(positionLayout(&c.Position),
		float32Field(&c.Accuracy),
		float32Field(&c.Battery),
		int64Field(&c.Timestamp),
	)
}

func parkLocationLayout(p *model.ParkLocation) []field {
	return append(positionLayout(&p.Position),
		float32Field(&p.Accuracy),
	)
}

func statusLayout(s *model.Status) []field {
	return []field{enumField(&s.Type, model.StatusType.Valid)}
}

func receiverLayout(ri *model.ReceiverInfo) []field {
	return []field{
		enumField(&ri.Type, model.ReceiverType.Valid),
		stringField(&ri.PhoneNumber),
	}
}

func serviceLayout(s *model.Service) []field { return []field{flagField(&s.Value)} }
func callLayout(c *model.Call) []field       { return []field{flagField(&c.Value)} }
func refreshLayout(r *model.Refresh) []field { return []field{flagField(&r.Value)} }
func parkLayout(p *model.Park) []field       { return []field{flagField(&p.Value)} }

func protectorLayout(p *model.Protector) []field {
	return []field{
		nullable(&p.CarLocation, carLocationLayout),
		nullable(&p.ParkLocation, parkLocationLayout),
		nullable(&p.Status, statusLayout),
		nullable(&p.Service, serviceLayout),
	}
}

func watcherLayout(w *model.Watcher) []field {
	return []field{
		nullable(&w.Call, callLayout),
		nullable(&w.Refresh, refreshLayout),
		nullable(&w.Park, parkLayout),
		nullable(&w.Receiver, receiverLayout),
		nullable(&w.Service, serviceLayout),
	}
}
