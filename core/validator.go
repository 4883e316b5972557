package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateUsername applies the same rule the account validation uses, for
// callers that hold a bare username rather than a full account.
func ValidateUsername(username string) error {
	return validate.Var(username, "required,username")
}

func init() {
	// Usernames must not contain the room identifier marker characters,
	// otherwise the private/group room classification becomes ambiguous.
	validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, PrivateRoomSeparator+GroupRoomMarker)
	})
}
