package codec

import (
	"errors"
	"io"
	"net/http"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// protoMarshal and protoUnmarshal are variables so tests can stub them.
var (
	protoMarshal   = proto.Marshal
	protoUnmarshal = proto.Unmarshal
)

// ProtoCodec decodes and encodes protocol buffer messages.
// T and U must be pointer types implementing proto.Message.
type ProtoCodec[T proto.Message, U proto.Message] struct{}

// NewProtoCodec creates a new ProtoCodec
func NewProtoCodec[T proto.Message, U proto.Message]() *ProtoCodec[T, U] {
	return &ProtoCodec[T, U]{}
}

// ContentType returns the media type written by Encode.
func (c *ProtoCodec[T, U]) ContentType() string {
	return "application/x-protobuf"
}

// newMessage allocates the message a pointer type T points to.
func newMessage[T proto.Message]() (T, bool) {
	var msg T
	typ := reflect.TypeOf(msg)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return msg, false
	}
	return reflect.New(typ.Elem()).Interface().(T), true
}

// Decode reads the request body and unmarshals it into a new T.
func (c *ProtoCodec[T, U]) Decode(r *http.Request) (T, error) {
	msg, ok := newMessage[T]()
	if !ok {
		var zero T
		return zero, errors.New("codec: proto type must be a pointer to a message")
	}
	if r.Body == nil {
		var zero T
		return zero, ErrEmptyBody
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := protoUnmarshal(body, msg); err != nil {
		var zero T
		return zero, err
	}
	return msg, nil
}

// Encode marshals resp and writes it to w.
func (c *ProtoCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	body, err := protoMarshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", c.ContentType())
	_, err = w.Write(body)
	return err
}
