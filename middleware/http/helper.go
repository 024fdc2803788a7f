package middleware

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// PathMatcher matches request paths against three kinds of entries:
//   - "/health" matches that path only
//   - "/api/**" matches "/api" and everything below it
//   - "/api/*/users" is a path.Match pattern
type PathMatcher struct {
	exact    map[string]struct{}
	prefixes []string
	patterns []string
}

func NewPathMatcher(paths []string) *PathMatcher {
	pm := &PathMatcher{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		switch {
		case strings.HasSuffix(p, "/**"):
			pm.prefixes = append(pm.prefixes, strings.TrimSuffix(p, "/**"))
		case strings.ContainsAny(p, "*?["):
			pm.patterns = append(pm.patterns, p)
		default:
			pm.exact[p] = struct{}{}
		}
	}
	return pm
}

func (pm *PathMatcher) Match(urlPath string) bool {
	if pm == nil {
		return false
	}
	if _, ok := pm.exact[urlPath]; ok {
		return true
	}
	for _, prefix := range pm.prefixes {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	for _, pattern := range pm.patterns {
		if ok, _ := path.Match(pattern, urlPath); ok {
			return true
		}
	}
	return false
}

func shouldSkip(c *gin.Context, matcher *PathMatcher, skip func(*gin.Context) bool) bool {
	if skip != nil && skip(c) {
		return true
	}
	return matcher.Match(c.Request.URL.Path)
}
