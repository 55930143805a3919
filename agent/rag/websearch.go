package rag

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/pchaya/aftercare/agent/contract"
	tavilyx "github.com/pchaya/aftercare/pkg/tavily"
)

// TavilySearcher adapts the Tavily client to the web-evidence port.
type TavilySearcher struct {
	client *tavilyx.Client
}

var _ contractx.WebSearcher = (*TavilySearcher)(nil)

func NewTavilySearcher(client *tavilyx.Client) (*TavilySearcher, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: tavily client is required", contractx.ErrValidation)
	}
	return &TavilySearcher{client: client}, nil
}

func (s *TavilySearcher) Search(ctx context.Context, query string) ([]contractx.WebSnippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}

	results, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: web search: %v", contractx.ErrEvidenceUnavailable, err)
	}

	snippets := make([]contractx.WebSnippet, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		snippets = append(snippets, contractx.WebSnippet{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}
	return snippets, nil
}
