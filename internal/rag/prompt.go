package rag

import "strings"

// Profile selects how strictly the prompt enforces citations. The two
// profiles mirror the two deployed prompt variants; the retrieval
// threshold that pairs with each lives in the config package.
type Profile string

const (
	// ProfileStrict requires a citation on every sourced statement.
	ProfileStrict Profile = "strict"

	// ProfileLenient asks for citations where relevant.
	ProfileLenient Profile = "lenient"
)

// RefusalSentence is the exact sentence the model must return when the
// answer is not present in the provided context. Clients match on it, so
// it must never change between releases without coordination.
const RefusalSentence = "I could not find information about that in the available documents."

// The four normative rules of the instruction template. Rule two differs
// by profile. Kept as separate constants so tests can assert each rule
// survives template edits verbatim.
const (
	ruleContextOnly = "Answer strictly and only from the provided context. Never use outside knowledge."

	ruleCiteStrict  = "Every fact drawn from a source must be cited as a Markdown link in the form [Title (Year)](URL), using the Title, Year and URL lines of that source."
	ruleCiteLenient = "Cite sources as Markdown links in the form [Title (Year)](URL) wherever a statement draws on them, using the Title, Year and URL lines of that source."

	ruleRefusal = `If the answer is not present in the context, respond with exactly this sentence and nothing else: "` + RefusalSentence + `"`

	ruleTone = "Keep a professional, conversational tone."
)

const promptHeader = `You are a research assistant answering questions about a library of academic papers. The context below contains excerpts from those papers, each delimited by [BEGIN SOURCE] and [END SOURCE] markers.

Follow these rules:`

// BuildSystemPrompt interpolates the assembled context into the fixed
// instruction template. Only the context substring varies per request.
// Citation compliance is a prompt-level instruction, not a structural
// guarantee; callers must treat model output as untrusted with respect to
// citation correctness.
func BuildSystemPrompt(context string, profile Profile) string {
	citeRule := ruleCiteStrict
	if profile == ProfileLenient {
		citeRule = ruleCiteLenient
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n1. ")
	b.WriteString(ruleContextOnly)
	b.WriteString("\n2. ")
	b.WriteString(citeRule)
	b.WriteString("\n3. ")
	b.WriteString(ruleRefusal)
	b.WriteString("\n4. ")
	b.WriteString(ruleTone)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	return b.String()
}
