package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCPF(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeCPF("529.982.247-25"))
	assert.Equal(t, "52998224725", NormalizeCPF("52998224725"))
	assert.Equal(t, "", NormalizeCPF("abc"))
}

func TestIsValidCPF(t *testing.T) {
	valid := []string{
		"52998224725",
		"529.982.247-25",
		"111.444.777-35",
	}
	for _, cpf := range valid {
		assert.True(t, IsValidCPF(cpf), cpf)
	}

	invalid := []string{
		"",
		"529982247",       // too short
		"52998224724",     // wrong check digit
		"111.444.777-34",  // wrong second check digit
		"000.000.000-00",  // repeated digits
		"11111111111",     // repeated digits
		"529982247251234", // too long
	}
	for _, cpf := range invalid {
		assert.False(t, IsValidCPF(cpf), cpf)
	}
}
