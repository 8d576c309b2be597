package agent_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/command/builtin"
	"github.com/m-mizutani/harrier/pkg/decode"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/service/memory"
	"github.com/m-mizutani/harrier/pkg/usecase/agent"
	"google.golang.org/genai"
)

// mockGemini replays scripted replies in order
type mockGemini struct {
	replies []string
	calls   int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, nil
}

func (m *mockGemini) GenerateText(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	reply := m.replies[m.calls%len(m.replies)]
	m.calls++
	return reply, nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fixture struct {
	agent   *agent.Agent
	gemini  *mockGemini
	storage *adapter.MemoryStorage
	repo    *repository.Memory
	session *model.Session
}

func newFixture(t *testing.T, replies []string, opts ...agent.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	gemini := &mockGemini{replies: replies}
	storage := adapter.NewMemoryStorage()
	repo := repository.NewMemory()

	session := model.NewSession(model.Profile{
		Name:  "Harrier",
		Role:  "an assistant that manages research notes",
		Goals: []string{"Collect notes", "Summarize them"},
	})

	store, err := memory.New(ctx, repo, gemini, session.ID)
	gt.NoError(t, err)

	client := &command.Client{
		Storage:   storage,
		Memory:    store,
		SessionID: session.ID,
	}

	registry, err := command.New(builtin.All(client, builtin.Config{}))
	gt.NoError(t, err)

	decoder, err := decode.New()
	gt.NoError(t, err)

	a, err := agent.New(agent.NewInput{
		Repo:     repo,
		Gemini:   gemini,
		Storage:  storage,
		Decoder:  decoder,
		Registry: registry,
		Memory:   store,
		Session:  session,
	}, opts...)
	gt.NoError(t, err)

	return &fixture{agent: a, gemini: gemini, storage: storage, repo: repo, session: session}
}

func TestStepExecutesCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		"Here is my next step.\n" +
			`{"thoughts":{"text":"save the note","reasoning":"persistence","plan":"- write the file"},` +
			`"command":{"name":"write_to_file","args":{"filename":"notes.txt","text":"hello"}}}`,
	})

	result, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.V(t, result.Command).Equal("write_to_file")
	gt.S(t, result.Result).Contains("Command write_to_file returned:")
	gt.S(t, result.Result).Contains("successfully")
	gt.False(t, result.Terminated)

	// The command really ran
	text, err := f.storage.Read(ctx, "sessions/"+string(f.session.ID)+"/files/notes.txt")
	gt.NoError(t, err)
	gt.V(t, text).Equal("hello")

	// One full cycle adds trigger, reply, and result
	gt.A(t, f.session.Transcript).Length(3)
	gt.V(t, f.session.Transcript[2].Role).Equal(model.RoleSystem)
	gt.V(t, f.session.LastCommand).Equal("write_to_file")
}

func TestStepRepairsLooseJSON(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{command: {name: write_file, args: {filename: a.txt, text: hi}}}`,
	})

	result, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)

	// Synonym resolved and loose JSON repaired
	gt.V(t, result.Command).Equal("write_to_file")
	gt.S(t, result.Result).Contains("successfully")

	text, err := f.storage.Read(ctx, "sessions/"+string(f.session.ID)+"/files/a.txt")
	gt.NoError(t, err)
	gt.V(t, text).Equal("hi")
}

func TestStepUnknownCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"hm"},"command":{"name":"teleport","args":{}}}`,
	})

	result, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.S(t, result.Result).Contains("Unknown command 'teleport'")
	gt.False(t, result.Terminated)

	// The failure is fed back through the transcript, not raised
	last := f.session.Transcript[len(f.session.Transcript)-1]
	gt.V(t, last.Role).Equal(model.RoleSystem)
	gt.S(t, last.Content).Contains("Unknown command")
}

func TestStepUndecodableReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		"I am sorry, I cannot decide right now.",
	})

	result, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.S(t, result.Result).Contains("Unable to execute command")
	gt.False(t, result.Terminated)
}

func TestStepTaskComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"done"},"command":{"name":"task_complete","args":{"reason":"all notes saved"}}}`,
	})

	result, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.True(t, result.Terminated)
	gt.V(t, result.Reason).Equal("all notes saved")
}

func TestStepHumanFeedback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"risky"},"command":{"name":"delete_file","args":{"filename":"notes.txt"}}}`,
	})

	result, err := f.agent.Step(ctx, "do not delete anything, keep collecting notes")
	gt.NoError(t, err)
	gt.V(t, result.Command).Equal(command.NameHumanFeedback)
	gt.S(t, result.Result).Contains("Human feedback: do not delete anything")

	// The planned command was never executed
	keys, err := f.storage.List(ctx, "sessions/")
	gt.NoError(t, err)
	gt.A(t, keys).Length(0)
}

func TestStepRecordsMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
	})

	_, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)

	memories, err := f.repo.SearchMemories(ctx, f.session.ID, []float32{1, 0, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, memories).Length(1)
	gt.S(t, memories[0].Text).Contains("Assistant Reply:")
	gt.S(t, memories[0].Text).Contains("Result: Command do_nothing returned: No action performed.")
}

func TestStepTranscriptLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
	}, agent.WithTranscriptLimit(6))

	for i := 0; i < 4; i++ {
		_, err := f.agent.Step(ctx, "")
		gt.NoError(t, err)
	}

	// Four cycles produce twelve messages; only the newest six remain
	gt.A(t, f.session.Transcript).Length(6)
}

func TestStepForcedContinueCountdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
	})

	f.session.NextActionCount = 2

	_, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.V(t, f.session.NextActionCount).Equal(1)

	_, err = f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.V(t, f.session.NextActionCount).Equal(0)

	// Does not go negative
	_, err = f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.V(t, f.session.NextActionCount).Equal(0)
}

func TestStepForcedContinueOnlyConsumedByDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("undecodable reply keeps the counter", func(t *testing.T) {
		f := newFixture(t, []string{
			"I am sorry, I cannot decide right now.",
		})
		f.session.NextActionCount = 1

		result, err := f.agent.Step(ctx, "")
		gt.NoError(t, err)
		gt.S(t, result.Result).Contains("Unable to execute command")
		gt.V(t, f.session.NextActionCount).Equal(1)
	})

	t.Run("human feedback keeps the counter", func(t *testing.T) {
		f := newFixture(t, []string{
			`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
		})
		f.session.NextActionCount = 1

		result, err := f.agent.Step(ctx, "hold on")
		gt.NoError(t, err)
		gt.V(t, result.Command).Equal(command.NameHumanFeedback)
		gt.V(t, f.session.NextActionCount).Equal(1)
	})

	t.Run("dispatch consumes the counter", func(t *testing.T) {
		f := newFixture(t, []string{
			`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
		})
		f.session.NextActionCount = 1

		_, err := f.agent.Step(ctx, "")
		gt.NoError(t, err)
		gt.V(t, f.session.NextActionCount).Equal(0)
	})
}

func TestStepSessionRehydration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{
		`{"thoughts":{"text":"idle"},"command":{"name":"do_nothing"}}`,
	})

	_, err := f.agent.Step(ctx, "")
	gt.NoError(t, err)
	gt.NoError(t, f.agent.Save(ctx))

	// A fresh agent over the persisted session continues the transcript
	restored, err := f.repo.GetSession(ctx, f.session.ID)
	gt.NoError(t, err)
	gt.A(t, restored.Transcript).Length(3)
	gt.V(t, restored.LastCommand).Equal("do_nothing")
}
