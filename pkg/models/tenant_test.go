package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCompanyCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateCompanyCode()
		assert.Len(t, code, companyCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(companyCodeAlphabet, c),
				"unexpected character %q in %s", c, code)
		}
	}
}

func TestCompanyCodeAlphabetExcludesAmbiguous(t *testing.T) {
	for _, c := range "01OI" {
		assert.False(t, strings.ContainsRune(companyCodeAlphabet, c))
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleDeveloper, RoleTester, RoleManager, RoleAdmin} {
		assert.True(t, ValidRole(role))
	}
	assert.False(t, ValidRole("owner"))
	assert.False(t, ValidRole(""))
	assert.False(t, ValidRole("Admin"))
}

func TestActorIsAdmin(t *testing.T) {
	assert.True(t, Actor{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Actor{Role: RoleManager}.IsAdmin())
}
