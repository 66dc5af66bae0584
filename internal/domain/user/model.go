package user

import "time"

// User is an account's stored profile and permission flags. The ID is the
// external subject asserted by the token, not a generated key; accounts
// are registered on first sight with both flags off and wait for an
// administrator to grant access.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Authorized bool      `json:"authorized"`
	Admin      bool      `json:"admin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
