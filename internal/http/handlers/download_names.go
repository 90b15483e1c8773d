package handlers

import (
	"mime"
	"path"
	"strings"
)

var ontologyContentTypes = map[string]string{
	".owl": "application/rdf+xml",
	".rdf": "application/rdf+xml",
	".ttl": "text/turtle",
	".obo": "text/plain; charset=utf-8",
	".csv": "text/csv; charset=utf-8",
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := ontologyContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// baseName strips directories from a repository target path.
func baseName(target string) string {
	target = strings.ReplaceAll(strings.TrimSpace(target), "\\", "/")
	if target == "" {
		return "artifact"
	}
	return path.Base(target)
}
