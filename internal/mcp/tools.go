package mcp

import "github.com/mark3labs/mcp-go/mcp"

// answerQuestionTool defines the answer_question MCP tool.
var answerQuestionTool = mcp.NewTool("answer_question",
	mcp.WithDescription("Answer a question using only the company's standard operating procedures. Returns the answer followed by the SOP passages it is based on."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Use the k most similar passages as context. Cannot be combined with threshold."),
	),
	mcp.WithNumber("threshold",
		mcp.Description("Use every passage with cosine similarity at or above this value (0-1). Cannot be combined with top_k."),
	),
)

// searchPassagesTool defines the search_passages MCP tool.
var searchPassagesTool = mcp.NewTool("search_passages",
	mcp.WithDescription("Search SOP passages semantically without generating an answer."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of passages to return (default 5)"),
	),
)

// indexStatusTool defines the index_status MCP tool.
var indexStatusTool = mcp.NewTool("index_status",
	mcp.WithDescription("Report whether the SOP index is loaded, and its size, dimension and embedding model."),
)
