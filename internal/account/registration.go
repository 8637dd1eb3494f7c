package account

import "strings"

// DefaultLastName is used when the full name has a single word.
const DefaultLastName = "Sin Apellido"

// NewRegistration assembles the register body from the sign-up steps. The first
// word of the full name is the first name and the rest the last name; the
// username is the local part of the email.
func NewRegistration(basic BasicInfo, profile ProfileInfo, prefs []string) RegistrationRequest {
	parts := strings.Fields(basic.FullName)

	var first, last string
	if len(parts) > 0 {
		first = parts[0]
		last = strings.Join(parts[1:], " ")
	}
	if last == "" {
		last = DefaultLastName
	}

	email := strings.TrimSpace(basic.Email)
	username, _, _ := strings.Cut(email, "@")

	return RegistrationRequest{
		Email:             email,
		Password:          basic.Password,
		FirstName:         first,
		LastName:          last,
		Username:          username,
		BirthDate:         profile.BirthDate,
		Country:           profile.Country,
		City:              profile.City,
		PreferredLanguage: profile.PreferredLanguage,
		Phone:             profile.Phone,
		TravellerType:     profile.TravellerType,
		Gender:            profile.Gender,
		Preferences:       append([]string{}, prefs...),
	}
}
