package domain

// Reaction mirrors one entry of a stored message's reaction list.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []UserID `json:"users"`
	Count int      `json:"count"`
}
