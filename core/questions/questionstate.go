package questions

// QuestionState is the lifecycle label shown on a posted question.
type QuestionState int

// The five labels a question can carry.
const (
	Unanswered QuestionState = iota
	Answered
	NeedsMoreInfo
	Duplicate
	FollowUp
)

type stateInfo struct {
	title   string
	command string
	label   string
	color   int
}

var stateTable = [...]stateInfo{
	Unanswered:    {title: "**❓ New Question**", command: "Mark Unanswered", label: "unanswered", color: 0x67efeb},
	Answered:      {title: "**✅ Answered Question**", command: "Mark Answered", label: "answered", color: 0x80ef67},
	NeedsMoreInfo: {title: "**❗ Needs More Info**", command: "Mark Needs More Info", label: "needing more info", color: 0xefad67},
	Duplicate:     {title: "**🔁 Duplicate Question**", command: "Mark Duplicate", label: "duplicate", color: 0xef6767},
	FollowUp:      {title: "**🔁 Question Requires Follow Up**", command: "Mark as Will Follow Up", label: "requiring follow up", color: 0xb667ef},
}

// AllStates lists every label in declaration order.
func AllStates() []QuestionState {
	return []QuestionState{Unanswered, Answered, NeedsMoreInfo, Duplicate, FollowUp}
}

func (q QuestionState) info() stateInfo {
	if q < 0 || int(q) >= len(stateTable) {
		return stateTable[Unanswered]
	}
	return stateTable[q]
}

// Title is the embed title of a question carrying this label.
func (q QuestionState) Title() string { return q.info().title }

// CommandName is the message command that applies this label.
func (q QuestionState) CommandName() string { return q.info().command }

// Color is the embed color of a question carrying this label.
func (q QuestionState) Color() int { return q.info().color }

// String returns the label as used in user-facing replies.
func (q QuestionState) String() string { return q.info().label }

// FromCommandName maps a message command name to its label. Unknown names map to Unanswered.
func FromCommandName(name string) QuestionState {
	for _, s := range AllStates() {
		if s.CommandName() == name {
			return s
		}
	}
	return Unanswered
}

// FromTitle maps an embed title back to its label.
func FromTitle(title string) (QuestionState, bool) {
	for _, s := range AllStates() {
		if s.Title() == title {
			return s, true
		}
	}
	return Unanswered, false
}
