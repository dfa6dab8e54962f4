package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var ErrEmptyTranscript = errors.New("no message content to interpret")

// Message is one turn of the chat transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Interpretation is what a turn of the interpreter produced: either plain
// assistant text or exactly one structured command.
type Interpretation struct {
	Text    string
	Command *Command
}

// Interpreter turns a chat transcript into an Interpretation. The language
// model behind it is a black box; implementations only control prompt and
// tool plumbing.
type Interpreter interface {
	Interpret(ctx context.Context, transcript []Message, current time.Time, eventSummary string) (Interpretation, error)
}

// InterpreterConfig configures the OpenAI-compatible interpreter.
type InterpreterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIInterpreter drives an OpenAI-compatible chat-completions endpoint
// with three calendar function tools and returns the first tool call, if
// any.
type OpenAIInterpreter struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIInterpreter(cfg InterpreterConfig) *OpenAIInterpreter {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIInterpreter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: slog.Default().With("component", "interpreter"),
	}
}

const systemPromptFormat = `You are a helpful calendar assistant. You can add, update and delete events on the user's calendar by extracting details from natural language.

Current date and time: %s

When the user mentions meetings or events, extract ALL of them and create multiple events if needed. For each event, extract the title, the start time, the end time (assume 1 hour when unspecified), the location and attendees if mentioned, and the day of the week.

For the day field, use 1-7 where 1 = Sunday, 2 = Monday, 3 = Tuesday, 4 = Wednesday, 5 = Thursday, 6 = Friday, 7 = Saturday. Convert relative dates like "tomorrow" or "next Monday" using the current date above.

When the user asks to change or cancel something, match it against the existing events listed below and reference the event by its id. Only supply the fields that should change.

Existing events:
%s

Always be helpful and confirm what you've done to the calendar.`

func (i *OpenAIInterpreter) Interpret(ctx context.Context, transcript []Message, current time.Time, eventSummary string) (Interpretation, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(transcript)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptFormat, current.Format(time.RFC1123), eventSummary),
	})
	valid := 0
	for _, m := range transcript {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if m.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: role, Content: content})
		valid++
	}
	if valid == 0 {
		return Interpretation{}, ErrEmptyTranscript
	}

	start := time.Now()
	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    i.model,
		Messages: chatMessages,
		Tools:    calendarTools(),
	})
	if err != nil {
		i.logger.Error("chat completion failed", "error", err, "latency_ms", time.Since(start).Milliseconds())
		return Interpretation{}, fmt.Errorf("interpreter request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Interpretation{}, errors.New("interpreter returned no choices")
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		call := message.ToolCalls[0]
		cmd, err := ParseCommand(call.Function.Name, []byte(call.Function.Arguments))
		if err != nil {
			i.logger.Warn("discarding malformed tool call", "tool", call.Function.Name, "error", err)
			return Interpretation{}, fmt.Errorf("interpreter tool call: %w", err)
		}
		i.logger.Info("interpreted command", "tool", call.Function.Name, "latency_ms", time.Since(start).Milliseconds())
		return Interpretation{Command: &cmd}, nil
	}

	text := strings.TrimSpace(message.Content)
	if text == "" {
		text = "I understand you want to schedule something. Could you please provide more details about the event?"
	}
	return Interpretation{Text: text}, nil
}

func calendarTools() []openai.Tool {
	addEntrySchema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title":       {Type: jsonschema.String, Description: "The title or subject of the meeting"},
			"startTime":   {Type: jsonschema.String, Description: "Start time in HH:MM format (24-hour)"},
			"endTime":     {Type: jsonschema.String, Description: "End time in HH:MM format (24-hour)"},
			"day":         {Type: jsonschema.Integer, Description: "Day of the week (1=Sunday, 7=Saturday)"},
			"description": {Type: jsonschema.String, Description: "Additional details about the meeting"},
			"location":    {Type: jsonschema.String, Description: "Meeting location"},
			"attendees":   {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}, Description: "List of attendees"},
			"color":       {Type: jsonschema.String, Description: "Color class for the event (e.g. bg-blue-500)"},
		},
		Required: []string{"title", "startTime", "endTime", "day"},
	}

	updateEntrySchema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"id":          {Type: jsonschema.String, Description: "Identifier of the event to change"},
			"title":       {Type: jsonschema.String},
			"startTime":   {Type: jsonschema.String, Description: "New start time in HH:MM format"},
			"endTime":     {Type: jsonschema.String, Description: "New end time in HH:MM format"},
			"day":         {Type: jsonschema.Integer, Description: "New day of the week (1=Sunday, 7=Saturday)"},
			"date":        {Type: jsonschema.String, Description: "New date as YYYY-MM-DD, ignored when day is given"},
			"description": {Type: jsonschema.String},
			"location":    {Type: jsonschema.String},
			"attendees":   {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
			"color":       {Type: jsonschema.String},
		},
		Required: []string{"id"},
	}

	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolAddEvents,
				Description: "Add one or more events to the user's calendar",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"events": {Type: jsonschema.Array, Items: &addEntrySchema, Description: "Array of events to create"},
					},
					Required: []string{"events"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolUpdateEvents,
				Description: "Change fields of one or more existing calendar events",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"events": {Type: jsonschema.Array, Items: &updateEntrySchema, Description: "Array of partial event updates"},
					},
					Required: []string{"events"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolDeleteEvents,
				Description: "Delete one or more events from the user's calendar",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"eventIds": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}, Description: "Identifiers of the events to delete"},
					},
					Required: []string{"eventIds"},
				},
			},
		},
	}
}
