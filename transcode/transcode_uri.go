package transcode

import (
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURI turns a filesystem path into a file:// URI. Values that already
// carry a scheme are returned unchanged.
func NormalizeURI(input string) (string, error) {
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 && strings.Contains(input, "://") {
		return input, nil
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// LocalPath returns the filesystem path of a file:// URI, or false if the URI
// does not point to a local file.
func LocalPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}
