package models

import (
	"fmt"
	"time"

	"github.com/elithrar/simple-scrypt"
)

// User defines an administrator of the site. For now, all users are admins
type User struct {
	// Internal user ID
	ID string `db:"id" json:"id"`
	// The user name used to log-in
	Name string `db:"name" json:"name"`
	// E-mail address of the user
	Email string `db:"email" json:"email"`
	// The hashed password for authentication
	PasswordHash string `db:"password_hash" json:"-"`
	// Creation date of this entry
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SetPassword sets a new password creating a password hash from the incoming password and storing it in the user's
// PasswordHash property
func (u *User) SetPassword(pass string) error {
	hash, err := scrypt.GenerateFromPassword([]byte(pass), scrypt.DefaultParams)
	if err != nil {
		return fmt.Errorf("SetPassword: Error during password hashing: %v", err)
	}
	// The library already uses a string encoding here - so there is no need to encode further
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword checks if the given password corresponds to the hash stored in the user struct.
// It returns an error if the password does not match or an error occurs when loading the password hash from the user
func (u *User) CheckPassword(pass string) error {
	return scrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pass))
}

// CreateUserRequest is sent by an admin to create another admin account
type CreateUserRequest struct {
	Name     string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"temporaryPassword" validate:"required,min=8"`
}
