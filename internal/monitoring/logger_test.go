package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not reach the previous logger")
}

func TestTagged(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	logf := Tagged("globalmap")
	logf("installed map %d", 3)
	assert.Equal(t, "[globalmap] installed map 3", got)

	// Replacing the logger after Tagged was created still redirects output.
	var second string
	SetLogger(func(format string, v ...interface{}) {
		second = fmt.Sprintf(format, v...)
	})
	logf("shift %s", "(1, 2)")
	assert.Equal(t, "[globalmap] shift (1, 2)", second)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}
