package common

import (
	"errors"
	"net/http"
	"sync"

	"github.com/suika-web/suika/pkg/codec"
)

// ErrResponseCommitted is returned by Send when the response was already sent.
var ErrResponseCommitted = errors.New("response: already committed")

// jsonCodec encodes BodyJSON payloads.
var jsonCodec = codec.NewJSONCodec[any, any]()

// Response is a buffered response that handlers and middleware mutate in
// place. Status and body setters are last-write-wins; nothing reaches the
// client until Send is called at the end of the pipeline.
//
// Response also implements http.ResponseWriter so that net/http handlers and
// codecs can write into it: Write appends to the body and WriteHeader sets the
// status.
type Response struct {
	mu        sync.Mutex
	status    int
	header    http.Header
	body      []byte
	committed bool
}

// NewResponse returns an empty response with status 200.
func NewResponse() *Response {
	return &Response{status: http.StatusOK, header: make(http.Header)}
}

// SetStatus sets the status code.
func (r *Response) SetStatus(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

// Status returns the current status code.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Body replaces the body.
func (r *Response) Body(b []byte) {
	r.mu.Lock()
	r.body = append(r.body[:0:0], b...)
	r.mu.Unlock()
}

// BodyString replaces the body with s.
func (r *Response) BodyString(s string) {
	r.Body([]byte(s))
}

// BodyJSON replaces the body with the JSON encoding of v and sets the content type.
func (r *Response) BodyJSON(v any) error {
	r.mu.Lock()
	prev := r.body
	r.body = nil
	r.mu.Unlock()

	if err := jsonCodec.Encode(r, v); err != nil {
		r.mu.Lock()
		r.body = prev
		r.mu.Unlock()
		return err
	}
	return nil
}

// Error replaces the response with a 500 describing err.
func (r *Response) Error(err error) {
	r.mu.Lock()
	r.status = http.StatusInternalServerError
	r.body = []byte("Internal Server Error: " + err.Error())
	r.mu.Unlock()
}

// Bytes returns a copy of the current body.
func (r *Response) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.body...)
}

// Len returns the current body length.
func (r *Response) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.body)
}

// Header returns the response header map.
func (r *Response) Header() http.Header {
	return r.header
}

// Write appends b to the body.
func (r *Response) Write(b []byte) (int, error) {
	r.mu.Lock()
	r.body = append(r.body, b...)
	r.mu.Unlock()
	return len(b), nil
}

// WriteHeader sets the status code.
func (r *Response) WriteHeader(statusCode int) {
	r.SetStatus(statusCode)
}

// Replace overwrites status, headers and body with those of src.
func (r *Response) Replace(src *Response) {
	src.mu.Lock()
	status := src.status
	body := append([]byte(nil), src.body...)
	header := src.header.Clone()
	src.mu.Unlock()

	r.mu.Lock()
	r.status = status
	r.body = body
	for k, v := range header {
		r.header[k] = v
	}
	r.mu.Unlock()
}

// Committed reports whether the response has been sent.
func (r *Response) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// Send writes the buffered response on w. It can be called once.
func (r *Response) Send(w http.ResponseWriter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return 0, ErrResponseCommitted
	}
	r.committed = true

	dst := w.Header()
	for k, v := range r.header {
		dst[k] = v
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.body) == 0 {
		return 0, nil
	}
	return w.Write(r.body)
}
