// Package codec provides the wire encodings used by generic routes and JSON bodies.
package codec

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrEmptyBody is returned when a request carries no body to decode.
var ErrEmptyBody = errors.New("codec: empty request body")

// JSONCodec decodes requests of type T and encodes responses of type U as JSON.
type JSONCodec[T any, U any] struct{}

// NewJSONCodec creates a new JSONCodec
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}

// ContentType returns the media type written by Encode.
func (c *JSONCodec[T, U]) ContentType() string {
	return "application/json"
}

// Decode reads the request body and unmarshals it into a T.
func (c *JSONCodec[T, U]) Decode(r *http.Request) (T, error) {
	var data T

	if r.Body == nil {
		return data, ErrEmptyBody
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return data, err
	}
	if len(body) == 0 {
		return data, ErrEmptyBody
	}

	if err := json.Unmarshal(body, &data); err != nil {
		return data, err
	}
	return data, nil
}

// Encode marshals resp and writes it to w with a JSON content type.
func (c *JSONCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", c.ContentType())
	_, err = w.Write(body)
	return err
}
