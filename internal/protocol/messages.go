package protocol

// HELLO (client -> hub)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	UserID          string `json:"user_id,omitempty"` // empty on first join; hub assigns
	Name            string `json:"name"`
	GM              bool   `json:"gm,omitempty"`
}

// WELCOME (hub -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	UserID          string       `json:"user_id"`
	Roster          []RosterUser `json:"roster"`
}

// ROSTER (hub -> all clients) is re-broadcast on every join, leave or flag
// change. Clients run authority election over it locally; the hub never
// names an authority itself.
type RosterMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Roster          []RosterUser `json:"roster"`
}

type RosterUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	GM     bool   `json:"gm,omitempty"`
	Active bool   `json:"active"`
}
