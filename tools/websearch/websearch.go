// Package websearch provides a built-in web search tool backed by the
// Tavily API.
package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/mcpchat/pkg/llmutils"
	"github.com/effective-security/mcpchat/pkg/schema"
	"github.com/effective-security/mcpchat/tools"
)

const ToolName = "web_search"

// TokenEnvVarName is the environment variable holding the Tavily API key.
const TokenEnvVarName = "TAVILY_API_KEY" //nolint:gosec

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"title=query,description=The query to search the web for."`
}

// SearchResult represents the structure of a search response.
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" jsonschema:"title=results,description=The results from a web search."`
	Answer  string                      `json:"answer,omitempty" jsonschema:"title=answer,description=The aggregated answer from a web search."`
}

// Tool provides web search to the model without a backend server.
type Tool struct {
	apikey     string
	baseURL    string
	httpClient *http.Client
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// New creates the web search tool. The API key is read from the
// TAVILY_API_KEY environment variable.
func New() (*Tool, error) {
	apikey := os.Getenv(TokenEnvVarName)
	if apikey == "" {
		return nil, errors.Errorf("%s is not set", TokenEnvVarName)
	}
	return &Tool{
		apikey:     apikey,
		httpClient: http.DefaultClient,
	}, nil
}

// WithBaseURL overrides the Tavily endpoint, used in tests.
func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient allows setting a custom HTTP client.
func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Searches the web and returns ranked results with an aggregated answer."
}

func (t *Tool) Parameters() any {
	return schema.New(reflect.TypeOf(SearchRequest{}))
}

func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	client := tavilygo.NewClient(t.apikey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req SearchRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal input")
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func (r *SearchResult) String() string {
	var sb strings.Builder
	if r.Answer != "" {
		sb.WriteString("ANSWER: ")
		sb.WriteString(r.Answer)
		sb.WriteString("\n")
	}
	for _, result := range r.Results {
		sb.WriteString("- URL: ")
		sb.WriteString(result.URL)
		sb.WriteString("\n  TITLE: ")
		sb.WriteString(result.Title)
		sb.WriteString("\n")
	}
	return sb.String()
}
