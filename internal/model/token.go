package model

// Payload is the flat key/value content of a signed token.
type Payload map[string]string

// Card and photo payload keys.
const (
	PayloadUserID    = "user_id"
	PayloadFirstName = "first_name"
	PayloadLastName  = "last_name"
	PayloadRole      = "role"
	PayloadPhotoID   = "photo_id"
	PayloadJoinYear  = "join_year"
)
