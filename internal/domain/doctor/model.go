package doctor

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
)

// Doctor maps to the doctors table.
type Doctor struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Principal returns the identity a session is opened for.
func (d *Doctor) Principal() auth.Principal {
	return auth.Principal{ID: d.ID, Username: d.Username}
}

// Registration is the sign-up submission. ConfirmPassword is only checked
// when supplied.
type Registration struct {
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// Credentials is the login submission.
type Credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}
