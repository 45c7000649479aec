// Package tools declares the callable functions exposed to the upstream
// voice model and dispatches their invocations.
package tools

import (
	"encoding/json"

	"github.com/aigents-hub/aigents-api/pkg/realtime"
)

// Tool names as the model invokes them.
const (
	NameSearchAutomobile  = "search_automobile"
	NameCompareAutomobile = "compare_automobile"
	NameNewsAutomobiles   = "news_automobiles"
)

// SearchArgs are the arguments of search_automobile and news_automobiles.
type SearchArgs struct {
	Query string `json:"query"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

// CompareArgs are the arguments of compare_automobile.
type CompareArgs struct {
	Items []SearchArgs `json:"items"`
}

var searchParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Search terms for automobiles"},
		"make": {"type": "string", "description": "Optional. Automobile make/brand to filter results"},
		"model": {"type": "string", "description": "Optional. Automobile model to filter results"}
	},
	"required": ["query"]
}`)

var compareParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"description": "List of search items for automobiles (max 3)",
			"items": {
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search terms for automobiles"},
					"make": {"type": "string", "description": "Optional. Automobile make/brand to filter results"},
					"model": {"type": "string", "description": "Optional. Automobile model to filter results"}
				},
				"required": ["query"]
			},
			"maxItems": 3
		}
	},
	"required": ["items"]
}`)

var newsParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "News search terms"},
		"make": {"type": "string", "description": "Optional. Automobile make/brand to filter news"},
		"model": {"type": "string", "description": "Optional. Automobile model to filter news"}
	},
	"required": ["query"]
}`)

// Definitions returns the tool schemas advertised in the session
// configuration.
func Definitions() []realtime.Tool {
	return []realtime.Tool{
		{
			Type:        "function",
			Name:        NameSearchAutomobile,
			Description: "Search for automobiles given a text query",
			Parameters:  searchParams,
		},
		{
			Type:        "function",
			Name:        NameCompareAutomobile,
			Description: "Compare specifications of two or three automobiles given a list of search terms",
			Parameters:  compareParams,
		},
		{
			Type:        "function",
			Name:        NameNewsAutomobiles,
			Description: "Fetch latest automotive news matching a search query",
			Parameters:  newsParams,
		},
	}
}
