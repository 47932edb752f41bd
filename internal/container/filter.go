package container

import (
	"path"
)

// Filter decides whether a container file takes part in a transformation.
type Filter interface {
	Include(name, abs string) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(name, abs string) bool

func (f FilterFunc) Include(name, abs string) bool {
	return f(name, abs)
}

// All includes every file.
var All Filter = FilterFunc(func(string, string) bool { return true })

// Exclude includes every file except the named ones.
func Exclude(names ...string) Filter {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[Normalize(n)] = struct{}{}
	}
	return FilterFunc(func(name, _ string) bool {
		_, found := skip[name]
		return !found
	})
}

// Match includes files whose logical name matches any of the glob patterns
// (path.Match syntax, e.g. "/Doc_0/Pages/*/Content.xml").
func Match(patterns ...string) Filter {
	return FilterFunc(func(name, _ string) bool {
		for _, pattern := range patterns {
			if matched, _ := path.Match(pattern, name); matched {
				return true
			}
		}
		return false
	})
}

// And includes a file only when every filter does.
func And(filters ...Filter) Filter {
	return FilterFunc(func(name, abs string) bool {
		for _, f := range filters {
			if f != nil && !f.Include(name, abs) {
				return false
			}
		}
		return true
	})
}
