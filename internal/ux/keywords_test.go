package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExitKeyword(t *testing.T) {
	for _, in := range []string{"exit", "QUIT", " Stop ", "bye.", "Bye!", "ｅｘｉｔ"} {
		assert.True(t, IsExitKeyword(in), in)
	}
	for _, in := range []string{"", "exit now", "goodbye", "stop the server", "list files"} {
		assert.False(t, IsExitKeyword(in), in)
	}
}

func TestNormalizeIntent(t *testing.T) {
	assert.Equal(t, "list files in home", NormalizeIntent("  list   files\tin home \n"))
	assert.Equal(t, "show disk usage", NormalizeIntent("ｓｈｏｗ disk usage"))
	assert.Equal(t, "", NormalizeIntent("   "))
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Straße"), Fold("STRASSE"))
	assert.Equal(t, "accept", Fold("Accept"))
}
