package model

// Identity is a verified identity assertion handed over by the
// authentication collaborator.
type Identity struct {
	Email     string
	FirstName string
	LastName  string
	Name      string
}

// MagicLink is an issued login token together with the member it was
// issued for, so the caller can address the login mail.
type MagicLink struct {
	Token    string
	Identity Identity
}
