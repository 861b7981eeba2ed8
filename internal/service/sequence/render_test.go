package sequence

import (
	"testing"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	r := NewRenderer()
	vars := templateVars(
		model.Person{FirstName: "Dana", LastName: "Cruz"},
		model.Company{Name: "Acme 3PL"},
		&model.Sender{FullName: "Riley Rep"},
	)

	tests := []struct {
		src  string
		want string
	}{
		{"plain text", "plain text"},
		{"Hi {{ first_name }} at {{ company_name }}", "Hi Dana at Acme 3PL"},
		{"{{ full_name }}", "Dana Cruz"},
		{`{{ title | default: "friend" }}`, "friend"},
		{"-- {{ sender_name }}", "-- Riley Rep"},
	}
	for _, tt := range tests {
		got, err := r.Render(tt.src, vars)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got)
	}

	// cached path renders the same
	got, err := r.Render("Hi {{ first_name }} at {{ company_name }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hi Dana at Acme 3PL", got)
}

func TestRenderer_ParseError(t *testing.T) {
	_, err := NewRenderer().Render("{% nosuchtag %}", nil)
	assert.Error(t, err)
}
