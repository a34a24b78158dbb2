package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONSize caps JSON request bodies.
const DefaultMaxJSONSize = 1 << 20

// JSON decodes an application/json body into v. Unknown fields, trailing
// data and bodies over DefaultMaxJSONSize are rejected. Numbers inside
// untyped values decode as json.Number.
func JSON() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if err := r.Context().Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, ct)
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, DefaultMaxJSONSize+1))
		dec.DisallowUnknownFields()
		dec.UseNumber()

		if err := decodeLimited(dec, v); err != nil {
			return err
		}
		if dec.More() {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}

// decodeLimited decodes one value and rejects it when the decoder read past
// DefaultMaxJSONSize. A body cut short by the limit fails to decode.
func decodeLimited(dec *json.Decoder, v any) error {
	err := dec.Decode(v)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
	default:
		return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
	}
	if dec.InputOffset() > DefaultMaxJSONSize {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrFailedToParseJSON, DefaultMaxJSONSize)
	}
	return nil
}
