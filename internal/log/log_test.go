package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itnpc/httpmock/internal/log"
)

func TestNop_NeverPanics(t *testing.T) {
	l := log.Nop()
	assert.NotPanics(t, func() {
		l.Debug("x", "k", "v")
		l.Info("x")
		l.Warn("x", "k", 1)
		l.Error("x", "k", nil)
	})
}

func TestNew_DefaultsDoNotPanic(t *testing.T) {
	l := log.New()
	assert.NotPanics(t, func() {
		l.Info("ready", "component", "registry")
	})
}

func TestWithLevel_InvalidLevelIgnored(t *testing.T) {
	l := log.New(log.WithLevel("not-a-level"))
	assert.NotPanics(t, func() { l.Debug("still works") })
}
