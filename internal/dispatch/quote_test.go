package dispatch

import (
	"testing"

	"al.essio.dev/pkg/shellescape"
	"github.com/stretchr/testify/assert"
)

// Trace lines for cmd tasks are rendered with shellescape.QuoteCommand.
func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{name: "plain", argv: []string{"echo", "hello"}, want: "echo hello"},
		{name: "safe punctuation", argv: []string{"go", "test", "./...", "-run=TestX"}, want: "go test ./... -run=TestX"},
		{name: "underscore", argv: []string{"get_cwd"}, want: "get_cwd"},
		{name: "space", argv: []string{"echo", "a b"}, want: "echo 'a b'"},
		{name: "empty", argv: []string{"echo", ""}, want: "echo ''"},
		{name: "single quote", argv: []string{"it's"}, want: `'it'"'"'s'`},
		{name: "dollar", argv: []string{"$HOME"}, want: "'$HOME'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shellescape.QuoteCommand(tt.argv))
		})
	}
}
