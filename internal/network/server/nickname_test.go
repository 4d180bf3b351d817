package server

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGenerateNickname(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		name := GenerateNickname()
		adj, noun, ok := strings.Cut(name, " ")
		assert.True(t, ok, name)
		assert.Contains(t, adjectives, adj)
		assert.Contains(t, nouns, noun)
		assert.LessOrEqual(t, utf8.RuneCountInString(name), 32)
	}
}
