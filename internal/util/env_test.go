package util_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github/chapool/go-cardsigner/internal/util"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CARDSIGNER_TEST_STR", "foo")
	t.Setenv("CARDSIGNER_TEST_INT", "42")
	t.Setenv("CARDSIGNER_TEST_BOOL", "false")
	t.Setenv("CARDSIGNER_TEST_DUR", "3s")
	t.Setenv("CARDSIGNER_TEST_ARR", "a, b,,c")
	t.Setenv("CARDSIGNER_TEST_BAD", "nope")

	assert.Equal(t, "foo", util.GetEnv("CARDSIGNER_TEST_STR", "bar"))
	assert.Equal(t, "bar", util.GetEnv("CARDSIGNER_TEST_MISSING", "bar"))
	assert.Equal(t, 42, util.GetEnvAsInt("CARDSIGNER_TEST_INT", 1))
	assert.Equal(t, 1, util.GetEnvAsInt("CARDSIGNER_TEST_BAD", 1))
	assert.Equal(t, uint64(42), util.GetEnvAsUint64("CARDSIGNER_TEST_INT", 1))
	assert.False(t, util.GetEnvAsBool("CARDSIGNER_TEST_BOOL", true))
	assert.True(t, util.GetEnvAsBool("CARDSIGNER_TEST_BAD", true))
	assert.Equal(t, 3*time.Second, util.GetEnvAsDuration("CARDSIGNER_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, util.GetEnvAsDuration("CARDSIGNER_TEST_BAD", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, util.GetEnvAsStringArr("CARDSIGNER_TEST_ARR", nil))
	assert.Equal(t, []string{"x"}, util.GetEnvAsStringArr("CARDSIGNER_TEST_MISSING", []string{"x"}))
}
