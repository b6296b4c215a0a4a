package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/core"
)

const (
	routeInstructions = "Given the user question below, determine if it requires looking up " +
		"information from our document database about {{.subject}}, or if it can be answered " +
		"directly with general knowledge."
	routeAnswerFormat = `Respond with ONLY one word: "retrieve" or "direct"`

	answerInstructions = "You are an assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer the question. " +
		"If you don't know the answer, just say that you don't know. " +
		"Use three sentences maximum and keep the answer concise.\n\n" +
		"Context:\n{{.context}}"

	questionTemplate = "Question: {{.question}}"
)

// Routing decisions the router prompt asks for.
const (
	decisionRetrieve = "retrieve"
	decisionDirect   = "direct"
)

var (
	routePrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(routeInstructions, []string{"subject"}),
		prompts.NewSystemMessagePromptTemplate(routeAnswerFormat, nil),
		prompts.NewHumanMessagePromptTemplate(questionTemplate, []string{"question"}),
	})

	answerPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(answerInstructions, []string{"context"}),
		prompts.NewHumanMessagePromptTemplate(questionTemplate, []string{"question"}),
	})
)

// formatPrompt renders a chat template and converts it to the model-neutral
// message type.
func formatPrompt(tmpl prompts.ChatPromptTemplate, values map[string]any) ([]ai.Message, error) {
	rendered, err := tmpl.FormatMessages(values)
	if err != nil {
		return nil, fmt.Errorf("formatting prompt: %w", err)
	}
	messages := make([]ai.Message, 0, len(rendered))
	for _, m := range rendered {
		role, err := toRole(m.GetType())
		if err != nil {
			return nil, err
		}
		messages = append(messages, ai.Message{Role: role, Content: m.GetContent()})
	}
	return messages, nil
}

func toRole(t llms.ChatMessageType) (ai.Role, error) {
	switch t {
	case llms.ChatMessageTypeSystem:
		return ai.RoleSystem, nil
	case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
		return ai.RoleHuman, nil
	case llms.ChatMessageTypeAI:
		return ai.RoleAI, nil
	default:
		return "", fmt.Errorf("unsupported prompt message type %q", t)
	}
}

// joinContext concatenates passage contents in ranked order.
func joinContext(passages []core.Passage) string {
	contents := make([]string, len(passages))
	for i, p := range passages {
		contents[i] = p.Content
	}
	return strings.Join(contents, "\n")
}
