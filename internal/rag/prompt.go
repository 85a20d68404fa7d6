package rag

import "strings"

// PromptTemplate is a versioned prompt. Changing Text means bumping Version;
// the citation tests pin the wording they depend on.
type PromptTemplate struct {
	Version string
	Text    string
}

const (
	contextPlaceholder  = "{context}"
	questionPlaceholder = "{question}"
)

// PromptV1 frames the maestro, asks for an acknowledgement when the documents
// do not hold the answer, caps the answer at three paragraphs and mandates
// arxiv:XXXX.YYYYY citations.
var PromptV1 = PromptTemplate{
	Version: "maestro-v1",
	Text: `You are the GPT maestro. Use the following pieces of documents to answer the user's question about Large Language Models.
If the answer cannot be found in the documents, acknowledge this to the user and suggest them to ask a different question.
Use up to three paragraphs to provide a complete, direct and useful answer. If possible break down concepts step by step.
Be practical and reference any existing libraries or implementations mentioned on the documents.
When providing your answer add citations referencing the relevant arxiv codes (e.g.: *reference content* (arxiv:1234.5678)). You do not need to quote or use all the documents presented.
Use markdown to organize and structure your response.
{context}
Question: {question}
Helpful Answer:`,
}

// Render fills the template. Placeholders inside the substituted values are
// not expanded again.
func (p PromptTemplate) Render(qctx QueryContext, question string) string {
	return strings.NewReplacer(
		contextPlaceholder, qctx.Text,
		questionPlaceholder, strings.TrimSpace(question),
	).Replace(p.Text)
}

// NotFoundAnswer is returned when no grounded answer could be produced.
const NotFoundAnswer = "I could not find the answer to your question in the LLMpedia documents. Please try asking a different question."

var notFoundPhrases = []string{
	"could not find",
	"couldn't find",
	"cannot be found",
	"can't be found",
	"not found in the documents",
	"no information about",
	"no information on",
	"no information in the documents",
	"not mentioned in the documents",
	"documents do not contain",
	"documents don't contain",
}

// StatesNotFound reports whether text explicitly acknowledges that the
// documents do not hold the answer.
func StatesNotFound(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range notFoundPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
