package opitem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOpKindString(t *testing.T) {
	cases := map[GetOpKind]string{
		EQ:            "EQ",
		NEXT:          "NEXT",
		PREV:          "PREV",
		FirstGetOp:    "FIRST",
		LastGetOp:     "LAST",
		GetOpKind(99): "UNKNOWN",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestDestinationZeroValueInvalid(t *testing.T) {
	var d Destination
	assert.False(t, d.Valid)
	assert.False(t, d.Preset)
}
