// Package pathname converts between flat storage keys and the
// category/name hierarchy derived from them.
//
// A pathname is the exact object-store key, e.g. "lessons/algebra.html".
// The category is everything before the last slash; a pathname without a
// slash is uncategorized. The hierarchy is a derived view only — the
// store itself is flat.
package pathname

import "strings"

// Decompose splits a pathname into its category and leaf name.
// Category is "" when the pathname has no slash. Multi-level categories
// keep their internal slashes ("a/b/c.html" -> category "a/b").
func Decompose(p string) (category, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Compose is the inverse of Decompose: Compose(Decompose(p)) == p for
// every non-empty pathname.
func Compose(category, name string) string {
	if category == "" {
		return name
	}
	return category + "/" + name
}

// ViewRoute returns the public, extension-less address of a document:
// /view/<category>/<basename> or /view/<basename>.
func ViewRoute(category, name string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".html"), ".htm")
	if category == "" {
		return "/view/" + base
	}
	return "/view/" + category + "/" + base
}

// HasHTMLExt reports whether name carries a .html or .htm suffix.
func HasHTMLExt(name string) bool {
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// StoredCandidates maps a requested view path back to the pathnames it
// could be stored under. A path that already names an extension matches
// only itself; otherwise .html is tried before .htm. Matching against
// the store listing is exact — no fuzzy or case-insensitive lookup.
func StoredCandidates(viewPath string) []string {
	if HasHTMLExt(viewPath) {
		return []string{viewPath}
	}
	return []string{viewPath + ".html", viewPath + ".htm"}
}
