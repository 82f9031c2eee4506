package pattern

import (
	"regexp"
	"strings"
)

type regexMatcher struct {
	source string
	re     *regexp.Regexp
	names  []string
}

func newRegexMatcher(p string) (*regexMatcher, error) {
	expr := p
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &regexMatcher{source: p, re: re, names: re.SubexpNames()}, nil
}

func (m *regexMatcher) Match(path string) (map[string]string, bool) {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}
	if m.re.NumSubexp() == 0 {
		return nil, true
	}
	params := make(map[string]string, len(sub))
	for i, name := range m.names {
		if i == 0 || name == "" {
			continue
		}
		params[name] = sub[i]
	}
	return params, true
}

func (m *regexMatcher) String() string {
	return m.source
}
