// ABOUTME: Decodes server-sent event lines of a streamed chat completion
// ABOUTME: Each line becomes a tagged fragment; undecodable payloads are reported, never fatal
package llm

import (
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// FragmentKind tags a decoded stream line
type FragmentKind int

const (
	// FragmentIgnored is a line carrying no text: comments, blank lines, role-only deltas
	FragmentIgnored FragmentKind = iota
	// FragmentContent carries a piece of generated text
	FragmentContent
	// FragmentDone marks the end of the stream
	FragmentDone
	// FragmentUnparseable is a data line whose payload could not be decoded
	FragmentUnparseable
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentContent:
		return "content"
	case FragmentDone:
		return "done"
	case FragmentUnparseable:
		return "unparseable"
	default:
		return "ignored"
	}
}

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// Fragment is one decoded stream line
type Fragment struct {
	Kind    FragmentKind
	Content string
}

// DecodeFragment interprets one line of the event stream
func DecodeFragment(line string) Fragment {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return Fragment{Kind: FragmentIgnored}
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneMarker {
		return Fragment{Kind: FragmentDone}
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Fragment{Kind: FragmentUnparseable}
	}
	var sb strings.Builder
	for _, choice := range chunk.Choices {
		sb.WriteString(choice.Delta.Content)
	}
	if sb.Len() == 0 {
		return Fragment{Kind: FragmentIgnored}
	}
	return Fragment{Kind: FragmentContent, Content: sb.String()}
}
