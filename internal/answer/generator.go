// Package answer builds grounded prompts from retrieved chunks and streams
// model-generated answers constrained to the supplied context.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/docqa/internal/retriever"
)

// systemPrompt is the anti-hallucination contract. It is fixed for every
// invocation, never configurable per request.
const systemPrompt = `You are a precise document assistant. Answer the user's question based ONLY on the provided context passages. Follow these rules:

1. If the context contains the answer, give it clearly and concisely.
2. If the context only partially answers the question, state what you can answer and what is missing.
3. If the context does NOT contain the answer, say "I don't have enough information in the provided documents to answer this question."
4. Never fabricate information that is not present in the context.
5. When possible, reference which source passage(s) support your answer.
6. Keep answers focused, without unnecessary preamble.`

// noContextMarker is injected when retrieval produced nothing, so the model
// still runs and gives the insufficient-information response instead of the
// pipeline special-casing an empty answer.
const noContextMarker = "(no relevant passages were found in the indexed documents)"

// Completer streams a completion for a system/user message pair, forwarding
// tokens to emit as they are produced.
type Completer interface {
	Complete(ctx context.Context, system, user string, emit func(token string) error) error
}

// Generator produces grounded answers from retrieved chunks.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// New creates a Generator.
func New(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, logger: logger}
}

// Stream generates an answer token by token, forwarding each one to emit.
// The stream is finite and single-use; emit errors and ctx cancellation stop
// generation promptly. Zero retrieved chunks still produce a model run so
// the caller gets an explicit insufficient-information answer.
func (g *Generator) Stream(ctx context.Context, question string, results []retriever.Result, emit func(token string) error) error {
	user := buildPrompt(question, results)

	g.logger.Debug("Generating answer",
		"sources", len(results),
		"prompt_bytes", len(user),
	)

	return g.completer.Complete(ctx, systemPrompt, user, emit)
}

// Answer assembles the full answer text through Stream.
func (g *Generator) Answer(ctx context.Context, question string, results []retriever.Result) (string, error) {
	var b strings.Builder
	err := g.Stream(ctx, question, results, func(token string) error {
		b.WriteString(token)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// buildPrompt lays out the retrieved passages as numbered source blocks in
// score-descending order, then the question. The most relevant context comes
// first so the model sees it before anything else.
func buildPrompt(question string, results []retriever.Result) string {
	var contextSection string
	if len(results) == 0 {
		contextSection = noContextMarker
	} else {
		blocks := make([]string, len(results))
		for i, res := range results {
			blocks[i] = fmt.Sprintf("[Source %d]\n%s", i+1, res.Chunk.Text)
		}
		contextSection = strings.Join(blocks, "\n\n---\n\n")
	}

	return fmt.Sprintf(`Context from documents:

%s

---

Question: %s

Answer based only on the context above:`, contextSection, question)
}
