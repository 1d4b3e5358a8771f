package domain

// DefaultRoom is the only room messages are posted to.
const DefaultRoom = 0

// OutgoingMessage is the body posted to the message API.
// JSON tags follow the message API's casing.
type OutgoingMessage struct {
	Room    int    `json:"Cod_Sala"`
	Sender  string `json:"Login_Emisor" validate:"required"`
	Content string `json:"Contenido" validate:"required,max=4000"`
}

// ChatEntry is a message row mapped to display fields. It is recomputed on
// every fetch and never stored.
type ChatEntry struct {
	ID           string `json:"id,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	Author       string `json:"author"`
	Content      string `json:"content"`
	IsOwnMessage bool   `json:"is_own_message"`
}
