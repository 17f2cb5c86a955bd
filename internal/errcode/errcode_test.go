package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "sheet capacity exceeded", Text(CapacityExceeded))
	assert.Equal(t, "warning", Text(4100))
	assert.Equal(t, "internal error", Text(5123))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(TemplateMissing))
	assert.True(t, Recoverable(ResourceMissing))
	assert.False(t, Recoverable(OK))
	assert.False(t, Recoverable(SystemError))
}
