package prompts

import (
	"fmt"
	"strings"
)

// Template is a versioned prompt. The version participates in cache keys, so
// editing a template never serves results produced by an older wording.
type Template struct {
	Id      string
	Version int
	text    string
}

// Key identifies template + version for cache fingerprinting.
func (t Template) Key() string {
	return fmt.Sprintf("%s@v%d", t.Id, t.Version)
}

// Render substitutes {name} placeholders.
func (t Template) Render(vars map[string]string) string {
	out := t.text
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

var (
	MapSummary = Template{
		Id:      "map-summary",
		Version: 2,
		text: `Write a concise summary of the following:
"{text}"
CONCISE SUMMARY:`,
	}

	ReduceSummary = Template{
		Id:      "reduce-summary",
		Version: 2,
		text: `Write a final consolidated summary of the following summaries:
{text}
FINAL SUMMARY:`,
	}

	Digest = Template{
		Id:      "digest",
		Version: 1,
		text: `Please provide a comprehensive digest summary of the following documents.
Identify common themes, important action items, and key decisions across all of them:

{text}

DIGEST SUMMARY:`,
	}

	RAGMap = Template{
		Id:      "rag-map",
		Version: 3,
		text: `Use the following portion of a long document to see if any of the text is relevant to answer the question.
Return any relevant text verbatim. Quote the exact relevant portions.

Question: {question}

Document excerpt [{chunk_id}]:
---
{context}
---

Relevant text:`,
	}

	RAGReduce = Template{
		Id:      "rag-reduce",
		Version: 3,
		text: `You are synthesizing information from multiple document excerpts to answer a question.

Question: {question}

Relevant excerpts, each tagged with its source chunk id:
---
{excerpts}
---

Based only on these excerpts, provide a final, consolidated answer. If they
do not contain enough information, state that clearly. Be concise.

Answer:`,
	}
)
