package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc1234", "2026-08-28")

	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abc1234", commit)
	assert.Equal(t, "2026-08-28", date)
}

func TestVersionCommand(t *testing.T) {
	cmd := Version()
	assert.Equal(t, "version", cmd.Name())
}
