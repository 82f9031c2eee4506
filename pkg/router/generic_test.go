package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/suika-web/suika/pkg/codec"
	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/zap"
)

type greetRequest struct {
	Name string `json:"name"`
}

type greetResponse struct {
	Greeting string `json:"greeting"`
}

func serveBody(r *Router, method, path, body string) *common.Response {
	req := common.NewRequest(httptest.NewRequest(method, path, strings.NewReader(body)), nil)
	res := common.NewResponse()
	_ = r.Handle(req, res, common.Terminal())
	return res
}

func TestRegisterGenericRoute(t *testing.T) {
	r := New(Config{Logger: zap.NewNop()})
	err := RegisterGenericRoute(r, RouteConfig[greetRequest, greetResponse]{
		Method: http.MethodPost,
		Path:   "/greet",
		Codec:  codec.NewJSONCodec[greetRequest, greetResponse](),
		Handler: func(req *common.Request, data greetRequest) (greetResponse, error) {
			if data.Name == "" {
				return greetResponse{}, errors.New("name required")
			}
			return greetResponse{Greeting: "Hello, " + data.Name + "!"}, nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterGenericRoute failed: %v", err)
	}

	res := serveBody(r, "POST", "/greet", `{"name":"John"}`)
	if res.Status() != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", res.Status())
	}
	if res.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", res.Header().Get("Content-Type"))
	}
	var out greetResponse
	if err := json.Unmarshal(res.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if out.Greeting != "Hello, John!" {
		t.Errorf("Expected greeting %q, got %q", "Hello, John!", out.Greeting)
	}

	res = serveBody(r, "POST", "/greet", `{"name":`)
	if res.Status() != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", res.Status())
	}
	if !strings.HasPrefix(string(res.Bytes()), "Bad Request: ") {
		t.Errorf("Unexpected body %q", res.Bytes())
	}

	res = serveBody(r, "POST", "/greet", `{}`)
	if res.Status() != http.StatusInternalServerError {
		t.Errorf("Expected 500 for handler error, got %d", res.Status())
	}
	if string(res.Bytes()) != "Internal Server Error: name required" {
		t.Errorf("Unexpected body %q", res.Bytes())
	}
}

func TestRegisterGenericRouteValidation(t *testing.T) {
	r := New(Config{Logger: zap.NewNop()})
	err := RegisterGenericRoute(r, RouteConfig[greetRequest, greetResponse]{
		Method: http.MethodPost,
		Path:   "/greet",
	})
	if !errors.Is(err, ErrNilHandler) {
		t.Errorf("Expected ErrNilHandler, got %v", err)
	}
}

func TestWithMiddleware(t *testing.T) {
	var order []string
	stage := func(name string) common.Middleware {
		return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next *common.Next) error {
			order = append(order, name)
			return next.Proceed(req, res)
		})
	}

	r := New(Config{Logger: zap.NewNop()})
	r.Get("/guarded", WithMiddleware(func(req *common.Request, res *common.Response, next *common.Next) error {
		order = append(order, "handler")
		return nil
	}, stage("first"), stage("second")))

	serve(r, "GET", "/guarded")
	serve(r, "GET", "/guarded")

	want := []string{"first", "second", "handler", "first", "second", "handler"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, order)
	}
}

func TestWithMiddlewareShortCircuit(t *testing.T) {
	deny := common.MiddlewareFunc(func(req *common.Request, res *common.Response, next *common.Next) error {
		res.SetStatus(http.StatusForbidden)
		res.BodyString("Forbidden")
		return nil
	})

	r := New(Config{Logger: zap.NewNop()})
	r.Get("/secret", WithMiddleware(text("secret"), deny))

	res := serve(r, "GET", "/secret")
	if res.Status() != http.StatusForbidden || string(res.Bytes()) != "Forbidden" {
		t.Errorf("Expected route middleware to short-circuit, got %d %q", res.Status(), res.Bytes())
	}
}

func TestHTTPHandler(t *testing.T) {
	r := New(Config{Logger: zap.NewNop()})
	r.Get("/std", HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Std", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("from net/http"))
	})))

	res := serve(r, "GET", "/std")
	if res.Status() != http.StatusAccepted || string(res.Bytes()) != "from net/http" || res.Header().Get("X-Std") != "yes" {
		t.Errorf("Unexpected response %d %q %v", res.Status(), res.Bytes(), res.Header())
	}
}
