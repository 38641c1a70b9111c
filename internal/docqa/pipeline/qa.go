package pipeline

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"
	"docqa/pkg/logger"
)

// NotFoundSentinel is what the model is told to answer when the context is irrelevant.
const NotFoundSentinel = "Answer not found in the provided context."

// DefaultPromptTemplate restricts the model to the supplied context.
const DefaultPromptTemplate = `You are an AI assistant that answers questions using only the provided context. Do not use any outside knowledge.
Here is the document:
"{context}"

Here is the question: {question}

Instructions:
1. Read the context and the question carefully.
2. If the context directly answers the question, give a concise and accurate answer based only on it.
3. If the context is related but does not fully answer the question, give the related information and say why a complete answer is not possible.
4. If the context contains nothing related to the question, respond with exactly "` + NotFoundSentinel + `"
5. Do not make assumptions or add information that is not in the context.

Answer:
`

// Answer is the outcome of answering one question.
type Answer struct {
	Question  string             `json:"question"`
	Text      string             `json:"answer"`
	Context   string             `json:"context"`
	Chunks    []*schema.Document `json:"-"`
	Retrieval OutcomeKind        `json:"retrieval"`
}

// QAPipeline retrieves context for a question and asks the model.
type QAPipeline struct {
	retrieval *RetrievalPipeline
	llm       interfaces.LLM
	template  string
	log       *logger.Logger
}

// NewQAPipeline creates a new QAPipeline. An empty template selects DefaultPromptTemplate.
func NewQAPipeline(retrieval *RetrievalPipeline, llm interfaces.LLM, template string, log *logger.Logger) *QAPipeline {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &QAPipeline{retrieval: retrieval, llm: llm, template: template, log: log}
}

// Answer answers question from the k nearest chunks. The model output is returned as is.
func (p *QAPipeline) Answer(ctx context.Context, question string, k int) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	outcome := p.retrieval.Run(ctx, question, k)
	contextText := BuildContext(outcome.Chunks)
	prompt := p.BuildPrompt(contextText, question)

	p.log.Info(fmt.Sprintf("Sending prompt to LLM with %d context chunks (%s)", len(outcome.Chunks), outcome.Kind))
	text, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		p.log.WithError(err).Error("LLM failed to generate answer")
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	return &Answer{
		Question:  question,
		Text:      text,
		Context:   contextText,
		Chunks:    outcome.Chunks,
		Retrieval: outcome.Kind,
	}, nil
}

// BuildPrompt substitutes context and question into the template in a single pass, so
// placeholder text inside either value is left alone.
func (p *QAPipeline) BuildPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(p.template)
}

// BuildContext joins chunk texts in retrieval order, separated by blank lines.
func BuildContext(chunks []*schema.Document) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
