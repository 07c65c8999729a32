package models

// User is the caller identity handed to the service by the transport layer.
type User struct {
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}
