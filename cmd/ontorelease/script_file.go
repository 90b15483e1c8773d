package main

import (
	"fmt"
	"os"

	"github.com/yungbote/ontorelease/internal/buildorder"
	"github.com/yungbote/ontorelease/internal/domain/release"
)

// loadScript reads a release script document and checks its unit graph.
func loadScript(path string) (*release.Script, []string, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("--script is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	script, err := release.ParseScript(b)
	if err != nil {
		return nil, nil, err
	}
	order, err := buildorder.OrderSources(script.Files)
	if err != nil {
		return script, nil, err
	}
	return script, order, nil
}
