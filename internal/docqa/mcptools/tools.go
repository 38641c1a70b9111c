package mcptools

import "github.com/mark3labs/mcp-go/mcp"

var askDocumentsTool = mcp.NewTool("ask_documents",
	mcp.WithDescription("Answer a question using only the content of the ingested PDF documents. Returns the answer and the supporting chunks."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Number of chunks to retrieve (defaults to the server setting)"),
	),
)

var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List every ingested document with its identity, name and chunk count."),
)

var listQuestionsTool = mcp.NewTool("list_questions",
	mcp.WithDescription("List the stored question-set records."),
)

var deleteDocumentsTool = mcp.NewTool("delete_documents",
	mcp.WithDescription("Delete documents and their chunks from the index by identity."),
	mcp.WithArray("ids",
		mcp.Required(),
		mcp.Description("Document identities to delete"),
		mcp.WithStringItems(),
	),
)
