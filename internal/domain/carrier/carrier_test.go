package carrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_IsValid(t *testing.T) {
	assert.True(t, CodeSendit.IsValid())
	assert.False(t, Code("DHL").IsValid())
	assert.False(t, Code("sendit").IsValid())
}

func TestCredential_Validate(t *testing.T) {
	valid := Credential{Index: 1, SecretKey: "sk", BaseURL: "https://api.example.com"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, Credential{Index: 1, BaseURL: "https://api.example.com"}.Validate(), ErrNotConfigured)
	assert.ErrorIs(t, Credential{Index: 1, SecretKey: "sk"}.Validate(), ErrNotConfigured)
}

func TestCredential_RateKey(t *testing.T) {
	assert.Equal(t, "carrier:3", Credential{Index: 3}.RateKey())
}

func TestIsTerminalStatus(t *testing.T) {
	for _, label := range TerminalStatuses() {
		assert.True(t, IsTerminalStatus(label), label)
	}

	nonTerminal := []string{StatusCreated, StatusPickedUp, StatusInTransit, StatusOutForDelivery, "UNKNOWN(99)", ""}
	for _, label := range nonTerminal {
		assert.False(t, IsTerminalStatus(label), label)
	}
}

func TestUnknownLabel(t *testing.T) {
	assert.Equal(t, "UNKNOWN(99)", UnknownLabel(99))
	assert.True(t, IsUnknownLabel("UNKNOWN(99)"))
	assert.False(t, IsUnknownLabel(StatusDelivered))
}
