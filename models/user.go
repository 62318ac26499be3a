package models

// User is the cached admin profile returned by login.
type User struct {
	ID    FlexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
