package pattern

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// paramMatcher matches ":name" and "*name" patterns with a single-route
// httprouter tree. The tree is only read after construction.
type paramMatcher struct {
	source string
	tree   *httprouter.Router
}

func noop(http.ResponseWriter, *http.Request, httprouter.Params) {}

func newParamMatcher(p string) (m *paramMatcher, err error) {
	tree := httprouter.New()
	tree.RedirectTrailingSlash = false
	tree.RedirectFixedPath = false
	tree.HandleMethodNotAllowed = false

	// httprouter reports malformed patterns by panicking.
	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = fmt.Errorf("%v", rec)
		}
	}()
	tree.Handle(http.MethodGet, p, noop)

	return &paramMatcher{source: p, tree: tree}, nil
}

func (m *paramMatcher) Match(path string) (map[string]string, bool) {
	h, ps, _ := m.tree.Lookup(http.MethodGet, path)
	if h == nil {
		return nil, false
	}
	params := make(map[string]string, len(ps))
	for _, p := range ps {
		params[p.Key] = p.Value
	}
	return params, true
}

func (m *paramMatcher) String() string {
	return m.source
}
