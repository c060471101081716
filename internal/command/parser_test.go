package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := NewParser("")

	tests := []struct {
		text string
		want Command
	}{
		{"!authorize", Command{Type: TypeAuthorize, Name: "authorize", Args: []string{}}},
		{"!authorize 5511888@c.us", Command{Type: TypeAuthorize, Name: "authorize", Args: []string{"5511888@c.us"}}},
		{"  !DEAUTHORIZE   123@g.us ", Command{Type: TypeDeauthorize, Name: "deauthorize", Args: []string{"123@g.us"}}},
		{"!status", Command{Type: TypeStatus, Name: "status", Args: []string{}}},
		{"!relearn", Command{Type: TypeRelearn, Name: "relearn", Args: []string{}}},
		{"!help", Command{Type: TypeHelp, Name: "help", Args: []string{}}},
		{"!dance now", Command{Type: TypeUnknown, Name: "dance", Args: []string{"now"}}},
		{"!", Command{Type: TypeUnknown}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.text))
		})
	}
}

func TestIsCommand(t *testing.T) {
	p := NewParser("!")
	assert.True(t, p.IsCommand("!status"))
	assert.False(t, p.IsCommand("status!"))
	assert.False(t, p.IsCommand(""))

	slash := NewParser("/")
	assert.True(t, slash.IsCommand("/help"))
	assert.False(t, slash.IsCommand("!help"))
	assert.Equal(t, TypeHelp, slash.Parse("/help").Type)
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "5511999@c.us", Command{}.Target("5511999@c.us"))
	assert.Equal(t, "1@g.us", Command{Args: []string{"1@g.us", "x"}}.Target("5511999@c.us"))
}
