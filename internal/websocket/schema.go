package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave      Action = "autosave"
	ActionNavigate      Action = "navigate"
	ActionSubmit        Action = "submit"
	ActionIntegrityHeld Action = "integrity_held"
	ActionIntegrityLost Action = "integrity_lost"
	ActionPing          Action = "ping"
)

// RequestPayload is the single client message shape; unused fields stay
// empty for actions that do not need them.
type RequestPayload struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	Language   string `json:"language,omitempty"`
	Code       string `json:"code,omitempty"`
	Index      *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSuccess   Event = "success"
	EventError     Event = "error"
	EventTick      Event = "tick"
	EventState     Event = "state"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// ResponsePayload is a server message with an event and arbitrary data.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrorResponse is the shape sent for rejected actions.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}
