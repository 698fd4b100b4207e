package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPrefersFirstSetKey(t *testing.T) {
	t.Setenv("PORTER_LOG_FORMAT", "")
	t.Setenv("LOG_FORMAT", " console ")
	assert.Equal(t, "console", Get("json", "PORTER_LOG_FORMAT", "LOG_FORMAT"))

	t.Setenv("PORTER_LOG_FORMAT", "json")
	assert.Equal(t, "json", Get("text", "PORTER_LOG_FORMAT", "LOG_FORMAT"))
}

func TestGetFallback(t *testing.T) {
	t.Setenv("PORTER_UNSET_FOR_TEST", "")
	assert.Equal(t, "json", Get("json", "PORTER_UNSET_FOR_TEST"))
	assert.Equal(t, "json", Get("json"))
}

func TestBool(t *testing.T) {
	t.Setenv("PORTER_FLAG_FOR_TEST", "Yes")
	assert.True(t, Bool("PORTER_FLAG_FOR_TEST"))
	t.Setenv("PORTER_FLAG_FOR_TEST", "0")
	assert.False(t, Bool("PORTER_FLAG_FOR_TEST"))
}
