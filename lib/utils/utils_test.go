package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateEmail tests the ValidateEmail function with valid and invalid emails.
func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("test@example.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.False(t, ValidateEmail("test@example"))
	assert.False(t, ValidateEmail("test@.com"))
	assert.False(t, ValidateEmail("test@."))
	assert.False(t, ValidateEmail(""))
}

// TestValidatePassword tests the ValidatePassword function with valid and invalid passwords.
func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Test1234"))
	assert.False(t, ValidatePassword("test"))
	assert.False(t, ValidatePassword("Testtest"))
	assert.False(t, ValidatePassword("12345678"))
	assert.False(t, ValidatePassword("T1234"))
}
