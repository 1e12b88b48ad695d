package engine

import (
	"fmt"
	"strings"

	"paperchat/internal/vecindex"
)

// generalPrompt is used when no paper in the corpus matches the question.
const generalPrompt = `You are a research assistant for a collection of research papers. Answer from your general knowledge, and mention that the paper collection may contain more specific information.`

// chunkContextPrompt builds the system prompt for the vector path,
// stuffing the retrieved chunk contents as context.
func chunkContextPrompt(entries []vecindex.Entry) string {
	var b strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&b, "Passage %d (from %s):\n%s\n\n", i+1, entry.Source, entry.Content)
	}

	return fmt.Sprintf(`You are a research assistant. Answer the user's question using only the following passages retrieved from research papers. If the passages do not contain the answer, say so.

%s`, b.String())
}

// paperContextPrompt builds the system prompt for the keyword fallback,
// listing each candidate paper's filename with a leading excerpt of its
// full text, and instructing the model to cite filenames.
func paperContextPrompt(papers []candidate) string {
	var b strings.Builder
	for i, p := range papers {
		excerpt := p.content
		if len(excerpt) > excerptLength {
			excerpt = truncateUTF8(excerpt, excerptLength)
		}
		fmt.Fprintf(&b, "Paper %d: %s\nContent: %s\n\n", i+1, p.filename, excerpt)
	}

	return fmt.Sprintf(`You are a research assistant. Answer the user's question based on the following research papers. Always cite the specific papers you reference using their filenames. Be specific and accurate.

Research Papers:
%s`, b.String())
}
