package obs

import "strings"

var idCollections = map[string]bool{
	"institutions": true,
	"users":        true,
	"actions":      true,
	"products":     true,
}

// Static children of a collection that are not resource identifiers.
var staticChildren = map[string]bool{
	"public": true,
	"search": true,
	"login":  true,
}

var idSubresources = map[string]bool{
	"details":    true,
	"members":    true,
	"actions":    true,
	"products":   true,
	"purchases":  true,
	"executions": true,
	"users":      true,
}

// CanonicalPath collapses resource identifiers in known routes to :id so that
// metric label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 3 || segs[0] != "v1" || !idCollections[segs[1]] || staticChildren[segs[2]] {
		return path
	}
	if len(segs) > 4 {
		return path
	}
	if len(segs) == 4 && !idSubresources[segs[3]] {
		return path
	}
	segs[2] = ":id"
	return "/" + strings.Join(segs, "/")
}
