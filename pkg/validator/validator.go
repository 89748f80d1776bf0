package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateActivity(title, category, city, venue string, date time.Time) ValidationErrors {
	errs := make(ValidationErrors)

	title = strings.TrimSpace(title)
	if title == "" {
		errs.Add("title", "Title is required")
	} else if len(title) > 100 {
		errs.Add("title", "Title is too long")
	}

	if strings.TrimSpace(category) == "" {
		errs.Add("category", "Category is required")
	}

	if date.IsZero() {
		errs.Add("date", "Date is required")
	}

	if strings.TrimSpace(city) == "" {
		errs.Add("city", "City is required")
	}

	if strings.TrimSpace(venue) == "" {
		errs.Add("venue", "Venue is required")
	}

	return errs
}

func ValidateProfile(displayName string, bio *string) ValidationErrors {
	errs := make(ValidationErrors)

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	if bio != nil && len(*bio) > 500 {
		errs.Add("bio", "Bio is too long")
	}

	return errs
}

func ValidateComment(body string) ValidationErrors {
	errs := make(ValidationErrors)

	body = strings.TrimSpace(body)
	if body == "" {
		errs.Add("body", "Comment cannot be empty")
	} else if utf8.RuneCountInString(body) > 2000 {
		errs.Add("body", "Comment is too long")
	}

	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}
	if !hasSymbol {
		missing = append(missing, "one symbol")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
