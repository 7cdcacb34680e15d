package domain

// Transcript roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Entry is one role-tagged item of the transcript sent to the reasoning service
type Entry struct {
	Role       string
	Content    string
	ToolCalls  []ToolInvocationRequest // Set on assistant entries that request tools
	ToolCallID string                  // Set on tool entries
}

// ToolInvocationRequest is a model request to run a tool
type ToolInvocationRequest struct {
	CallID    string
	Name      string
	Arguments string // Raw JSON, parsed by the resolver
}

// ToolResult is the result fed back to the model for one invocation
type ToolResult struct {
	CallID  string
	Payload any
}

// ToolSpec declares a tool to the reasoning service
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Completion is the reply of one reasoning call: either content or tool calls
type Completion struct {
	Content   string
	ToolCalls []ToolInvocationRequest
}

// HasToolCalls reports whether the model asked for tools
func (c *Completion) HasToolCalls() bool {
	return len(c.ToolCalls) > 0
}

// Tail returns at most n trailing entries, for diagnostics
func Tail(entries []Entry, n int) []Entry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
