package edge

import "strings"

// Class is how a path is treated before any session check.
type Class int

const (
	ClassPublic Class = iota
	// ClassAuthOnly routes are the login-type pages; signed-in users are sent home.
	ClassAuthOnly
	ClassProtected
	// ClassBypass paths (static assets) skip the gateway logic entirely.
	ClassBypass
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassAuthOnly:
		return "auth_only"
	case ClassProtected:
		return "protected"
	case ClassBypass:
		return "bypass"
	default:
		return "unknown"
	}
}

// RouteTable is one frontend's route configuration. Entries are literal paths
// that also match everything below them; a segment written [name] matches any
// single segment and [...name] matches one or more.
type RouteTable struct {
	Public    []string
	AuthOnly  []string
	Protected []string
	// Bypass entries are raw path prefixes.
	Bypass []string
	// Default applies when nothing matches.
	Default Class
}

type pattern struct {
	segments []string
	class    Class
}

// Classifier resolves paths against a compiled RouteTable.
type Classifier struct {
	patterns []pattern
	bypass   []string
	fallback Class
}

func NewClassifier(t RouteTable) *Classifier {
	c := &Classifier{bypass: t.Bypass, fallback: t.Default}
	add := func(routes []string, class Class) {
		for _, r := range routes {
			c.patterns = append(c.patterns, pattern{segments: splitPath(r), class: class})
		}
	}
	add(t.Public, ClassPublic)
	add(t.AuthOnly, ClassAuthOnly)
	add(t.Protected, ClassProtected)
	return c
}

// Classify returns the class of the most specific matching route. Specificity
// is the number of pattern segments; ties go to the earlier list.
func (c *Classifier) Classify(path string) Class {
	for _, prefix := range c.bypass {
		if strings.HasPrefix(path, prefix) {
			return ClassBypass
		}
	}

	segs := splitPath(path)
	best, bestLen := c.fallback, -1
	for _, p := range c.patterns {
		if len(p.segments) > bestLen && p.matches(segs) {
			best, bestLen = p.class, len(p.segments)
		}
	}
	return best
}

// matches is true for the route itself and anything nested under it.
// The root route matches only itself.
func (p pattern) matches(path []string) bool {
	if len(p.segments) == 0 {
		return len(path) == 0
	}
	for i, seg := range p.segments {
		if isCatchAll(seg) {
			return len(path) > i
		}
		if i >= len(path) {
			return false
		}
		if isParam(seg) {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '[' && seg[len(seg)-1] == ']'
}

func isCatchAll(seg string) bool {
	return isParam(seg) && strings.HasPrefix(seg, "[...")
}

// splitPath("/a/b/") == ["a","b"]; splitPath("/") == [].
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// underAny reports whether path is one of routes or nested below one of them.
func underAny(path string, routes ...string) bool {
	for _, r := range routes {
		if path == r || strings.HasPrefix(path, r+"/") {
			return true
		}
	}
	return false
}
