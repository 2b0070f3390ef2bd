package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAction(t *testing.T) {
	testCases := []struct {
		name       string
		action     string
		wantUnique string
		wantData   string
	}{
		{name: "plain", action: Action("menu"), wantUnique: "menu", wantData: ""},
		{name: "one arg", action: Action("method", "card"), wantUnique: "method", wantData: "card"},
		{name: "nested", action: Action("pay", "confirm", "42"), wantUnique: "pay", wantData: "confirm:42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			unique, data := SplitAction(tc.action)
			assert.Equal(t, tc.wantUnique, unique)
			assert.Equal(t, tc.wantData, data)
			assert.NoError(t, ValidateAction(tc.action))
		})
	}
}

func TestValidateAction(t *testing.T) {
	assert.Error(t, ValidateAction(""))
	assert.NoError(t, ValidateAction(strings.Repeat("x", ActionLimitBytes)))
	assert.ErrorIs(t, ValidateAction(strings.Repeat("x", ActionLimitBytes+1)), ErrActionTooLong)
}
