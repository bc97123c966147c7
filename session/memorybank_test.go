package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNameLowercasesAndStripsUnsafeChars(t *testing.T) {
	assert.Equal(t, "agent-7-research", SanitizeName("Agent 7 Research!!"))
}

func TestSanitizeNameTrimsLeadingAndTrailingDashes(t *testing.T) {
	assert.Equal(t, "feature-x", SanitizeName("--feature-x--"))
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	assert.LessOrEqual(t, len(SanitizeName(long)), 100)
}

func TestCombineErrorsNilWhenEmpty(t *testing.T) {
	assert.Nil(t, CombineErrors(nil))
	assert.Nil(t, CombineErrors([]error{nil, nil}))
}
