package model

// Thoughts carries the free-form rationale fields of a decoded action
type Thoughts struct {
	Text         string `json:"text,omitempty"`
	Reasoning    string `json:"reasoning,omitempty"`
	Plan         string `json:"plan,omitempty"`
	Criticism    string `json:"criticism,omitempty"`
	RelevantGoal int    `json:"relevant_goal,omitempty"`
}

// CommandRef is the command portion of a decoded action
type CommandRef struct {
	Name string `json:"name"`
	Args Args   `json:"args,omitempty"`
}

// Action is one unit of agent intent decoded from a single model reply.
// It is produced fresh each loop iteration and never mutated after
// decode.
type Action struct {
	Thoughts Thoughts   `json:"thoughts"`
	Command  CommandRef `json:"command"`
}

// Empty reports whether the action carries no decoded content. The
// decoder returns an empty action instead of failing when the raw reply
// cannot be recovered.
func (a *Action) Empty() bool {
	return a == nil || (a.Command.Name == "" && a.Thoughts == Thoughts{})
}
