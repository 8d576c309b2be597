package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
)

const customSearchURL = "https://customsearch.googleapis.com/customsearch/v1"

type google struct {
	apiKey     string
	cseID      string
	baseURL    string
	httpClient *http.Client
}

func newGoogle(apiKey, cseID string) *google {
	return &google{
		apiKey:  apiKey,
		cseID:   cseID,
		baseURL: customSearchURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *google) Spec() command.Spec {
	return command.Spec{
		Name:        "google",
		Description: "Google Search",
		Required:    []string{"input"},
		Usage:       `"input": "<search>"`,
	}
}

type searchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (c *google) Run(ctx context.Context, args model.Args) (string, error) {
	if c.apiKey == "" || c.cseID == "" {
		return "", goerr.New("google search is not configured: set --google-api-key and --google-cse-id")
	}

	input, _ := args.GetString("input")

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("cx", c.cseID)
	query.Set("q", input)
	query.Set("num", "8")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read search response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", goerr.New("search API returned an error",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}

	var parsed struct {
		Items []searchResult `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to parse search response")
	}

	if len(parsed.Items) == 0 {
		return "No results found.", nil
	}

	rendered, err := json.MarshalIndent(parsed.Items, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to render search results")
	}

	return string(rendered), nil
}
