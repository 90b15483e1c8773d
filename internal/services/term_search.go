package services

import (
	"fmt"
	"strings"

	"github.com/yungbote/ontorelease/internal/platform/searchindex"
)

type TermSearchService interface {
	Search(repositoryKey, query string, limit int) ([]searchindex.Hit, error)
}

type termSearchService struct {
	index *searchindex.Index
}

func NewTermSearchService(index *searchindex.Index) TermSearchService {
	return &termSearchService{index: index}
}

func (s *termSearchService) Search(repositoryKey, query string, limit int) ([]searchindex.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}
	if s.index == nil {
		return []searchindex.Hit{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	hits := s.index.Search(repositoryKey, query, limit)
	if hits == nil {
		hits = []searchindex.Hit{}
	}
	return hits, nil
}
