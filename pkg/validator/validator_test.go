package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("ana@example.com", "ana_k", "Ana", "Secret123!")
	assert.False(t, errs.HasErrors())

	errs = ValidateRegister("not-an-email", "a!", "", "short")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Contains(t, errs, "password")

	errs = ValidateRegister("ana@example.com", "ana", "Ana", "alllowercase1!")
	assert.Equal(t, "Password must contain at least one uppercase letter", errs["password"])

	errs = ValidateRegister("ana@example.com", "ana", "Ana", "Secret123")
	assert.Equal(t, "Password must contain at least one symbol", errs["password"])

	errs = ValidateRegister("ana@example.com", "ana", "Ana", "secretsecret")
	assert.Equal(t, "Password must contain at least one uppercase letter, one number, one symbol", errs["password"])
}

func TestValidateLogin(t *testing.T) {
	assert.False(t, ValidateLogin("ana@example.com", "x").HasErrors())
	errs := ValidateLogin("", "")
	assert.Len(t, errs, 2)
}

func TestValidateActivity(t *testing.T) {
	assert.False(t, ValidateActivity("Hike", "travel", "Split", "Marjan", time.Now()).HasErrors())

	errs := ValidateActivity(" ", "", "", "", time.Time{})
	assert.Len(t, errs, 5)

	errs = ValidateActivity(strings.Repeat("x", 101), "travel", "Split", "Marjan", time.Now())
	assert.Equal(t, "Title is too long", errs["title"])
}

func TestValidateProfile(t *testing.T) {
	assert.False(t, ValidateProfile("Ana", nil).HasErrors())

	long := strings.Repeat("b", 501)
	errs := ValidateProfile("", &long)
	assert.Contains(t, errs, "display_name")
	assert.Contains(t, errs, "bio")
}

func TestValidateComment(t *testing.T) {
	assert.False(t, ValidateComment("hello").HasErrors())
	assert.True(t, ValidateComment("   ").HasErrors())
	assert.True(t, ValidateComment(strings.Repeat("é", 2001)).HasErrors())
}
