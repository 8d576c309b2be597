package agent

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(systemPromptRaw))

// triggerPrompt closes every prompt so the model always answers with
// the next action
const triggerPrompt = "Determine which next command to use, and respond using the format specified above:"

// buildSystemPrompt renders the profile and command list into the
// system instruction
func (a *Agent) buildSystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Name":     a.session.Profile.Name,
		"Role":     a.session.Profile.Role,
		"Goals":    a.session.Profile.Goals,
		"Commands": a.registry.Describe(),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

// buildContents assembles the conversation contents for one model
// call: recalled memories, the recent transcript, and the closing
// instruction
func (a *Agent) buildContents(memories []string, instruction string) []*genai.Content {
	var contents []*genai.Content

	contents = append(contents, genai.NewContentFromText(
		"The current time and date is "+time.Now().Format("Mon Jan 2 15:04:05 2006"),
		genai.RoleUser))

	if len(memories) > 0 {
		contents = append(contents, genai.NewContentFromText(
			"This reminds you of these events from your past:\n"+strings.Join(memories, "\n"),
			genai.RoleUser))
	}

	for _, msg := range a.session.Transcript {
		contents = append(contents, contentFromMessage(msg))
	}

	contents = append(contents, genai.NewContentFromText(instruction, genai.RoleUser))

	return contents
}

// contentFromMessage maps a transcript message to a model content.
// System messages (command results) are presented as user turns with a
// marker since the API has no system role inside the conversation.
func contentFromMessage(msg model.Message) *genai.Content {
	switch msg.Role {
	case model.RoleAssistant:
		return genai.NewContentFromText(msg.Content, genai.RoleModel)
	case model.RoleSystem:
		return genai.NewContentFromText("SYSTEM: "+msg.Content, genai.RoleUser)
	default:
		return genai.NewContentFromText(msg.Content, genai.RoleUser)
	}
}

// memoryQuery renders the recent transcript into the text used to
// recall relevant memories
func (a *Agent) memoryQuery() string {
	recent := a.session.Transcript.Tail(memoryQueryWindow)
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	for _, msg := range recent {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
