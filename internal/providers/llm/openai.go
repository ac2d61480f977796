// Package llm implements the chat-completion client the conversation
// controller issues one-shot requests through (spec.md §4.9).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tcz/rotarygpt/internal/conversation"
)

const (
	defaultURL   = "https://api.openai.com/v1/chat/completions"
	defaultModel = "gpt-3.5-turbo-0613"
)

// SystemPrompt builds the synthesized system prompt from spec.md §6. now is
// injected rather than read from time.Now() directly so callers (and
// tests) control the embedded date.
func SystemPrompt(physicalLocation string, now string) string {
	return fmt.Sprintf(
		"You are a phone agent living in an old rotary phone, acting as a smart home assistant. "+
			"Keep your responses short and casual. Oh, you have a German accent. Today's date is %s (UTC). "+
			"You are physically located in %s.",
		now, physicalLocation,
	)
}

// Client is a one-shot OpenAI chat-completion client.
type Client struct {
	apiKey           string
	url              string
	model            string
	physicalLocation string
	httpClient       *http.Client
	now              func() string
}

// New builds a Client. physicalLocation is embedded in every request's
// system prompt (spec.md §6, ROTARYGPT_PHYSICAL_LOCATION).
func New(apiKey, physicalLocation string) *Client {
	return &Client{
		apiKey:           apiKey,
		url:              defaultURL,
		model:            defaultModel,
		physicalLocation: physicalLocation,
		httpClient:       http.DefaultClient,
		now:              defaultNow,
	}
}

type chatMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *functionCall `json:"function_call,omitempty"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type functionDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

type requestBody struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Functions []functionDef `json:"functions,omitempty"`
}

// Complete issues one chat-completion request carrying log (with the
// synthesized system prompt prepended) and tools's exported schemas.
// Response parsing looks at choices[0].message: a function_call is
// returned as a tool call, otherwise plain content is returned as text.
func (c *Client) Complete(ctx context.Context, log []conversation.Message, tools []conversation.ExportedTool) (conversation.LLMReply, error) {
	messages := make([]chatMessage, 0, len(log)+1)
	messages = append(messages, chatMessage{Role: "system", Content: SystemPrompt(c.physicalLocation, c.now())})

	for _, m := range log {
		cm := chatMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == conversation.RoleAssistant && m.ToolCall != nil {
			cm.FunctionCall = &functionCall{Name: m.ToolCall.Name, Arguments: m.ToolCall.Arguments}
		}
		if m.Role == conversation.RoleToolResult && m.ToolCall != nil {
			cm.Name = m.ToolCall.Name
		}
		messages = append(messages, cm)
	}

	functions := make([]functionDef, 0, len(tools))
	for _, t := range tools {
		functions = append(functions, functionDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toolSchemaJSON(t.Parameters),
		})
	}

	payload, err := json.Marshal(requestBody{Model: c.model, Messages: messages, Functions: functions})
	if err != nil {
		return conversation.LLMReply{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return conversation.LLMReply{}, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return conversation.LLMReply{}, ctx.Err()
		}
		return conversation.LLMReply{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return conversation.LLMReply{}, fmt.Errorf("llm: status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content      string        `json:"content"`
				FunctionCall *functionCall `json:"function_call"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return conversation.LLMReply{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return conversation.LLMReply{}, fmt.Errorf("llm: no choices in response")
	}

	msg := result.Choices[0].Message
	if msg.FunctionCall != nil {
		return conversation.LLMReply{ToolCall: &conversation.ToolCall{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		}}, nil
	}
	return conversation.LLMReply{Text: msg.Content}, nil
}

func toolSchemaJSON(s conversation.ToolSchema) map[string]interface{} {
	props := make(map[string]interface{}, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = map[string]string{"type": p.Type, "description": p.Description}
	}
	return map[string]interface{}{
		"type":       s.Type,
		"properties": props,
		"required":   s.Required,
	}
}

func defaultNow() string {
	return time.Now().UTC().Format("2006-01-02, Monday")
}
