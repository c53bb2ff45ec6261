package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	Env = map[string]string{"CHATFOX_TEST_KEY": "from-file"}
	defer func() { Env = nil }()
	t.Setenv("CHATFOX_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("CHATFOX_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("CHATFOX_MISSING_KEY", "def"))
}

func TestGetEnvTypedHelpers(t *testing.T) {
	Env = map[string]string{
		"T_INT":      "12",
		"T_BAD_INT":  "twelve",
		"T_DUR":      "45s",
		"T_DUR_SECS": "30",
		"T_BOOL":     "true",
	}
	defer func() { Env = nil }()

	assert.Equal(t, 12, GetEnvInt("T_INT", 1))
	assert.Equal(t, 1, GetEnvInt("T_BAD_INT", 1))
	assert.Equal(t, 7, GetEnvInt("T_UNSET", 7))
	assert.Equal(t, 45*time.Second, GetEnvDuration("T_DUR", time.Second))
	assert.Equal(t, 30*time.Second, GetEnvDuration("T_DUR_SECS", time.Second))
	assert.Equal(t, time.Minute, GetEnvDuration("T_UNSET", time.Minute))
	assert.True(t, GetEnvBool("T_BOOL", false))
	assert.True(t, GetEnvBool("T_UNSET", true))
}
