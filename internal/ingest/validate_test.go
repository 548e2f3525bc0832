package ingest

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

func TestValidateRecord_Accepts(t *testing.T) {
	t.Parallel()

	lead, err := ValidateRecord(3, map[string]string{
		"name":     " Ada Lovelace ",
		"email":    "  Ada@Example.COM ",
		"role":     "CTO",
		"industry": "B2B SaaS",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "Ada Lovelace", lead.Name)
	assert.Equal(t, "ada@example.com", lead.Email)
	assert.Equal(t, "CTO", lead.Role)
	assert.Equal(t, "", lead.Company)
	assert.Equal(t, "", lead.LinkedIn)
	assert.Equal(t, "", lead.Phone)
	assert.Equal(t, 0, lead.Score)
	assert.Empty(t, lead.ScoreReason)
	assert.False(t, lead.IsProcessed)
	assert.Nil(t, lead.ProcessedAt)
	assert.Empty(t, lead.OfferID)
}

func TestValidateRecord_OptionalFields(t *testing.T) {
	t.Parallel()

	lead, err := ValidateRecord(1, map[string]string{
		"name":         "Bo",
		"email":        "bo@acme.io",
		"role":         "VP",
		"industry":     "Fintech",
		"company":      "Acme",
		"linkedin_url": "https://linkedin.com/in/bo",
		"phone":        "+1 555 0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", lead.Company)
	assert.Equal(t, "https://linkedin.com/in/bo", lead.LinkedIn)
	assert.Equal(t, "+1 555 0100", lead.Phone)
}

func TestValidateRecord_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fields      map[string]string
		wantKind    RejectKind
		wantMissing []string
		wantMsg     string
	}{
		{
			name:        "all missing",
			fields:      map[string]string{},
			wantKind:    RejectMissingFields,
			wantMissing: []string{"name", "email", "role", "industry"},
			wantMsg:     "missing required fields: name, email, role, industry",
		},
		{
			name:        "blank role",
			fields:      map[string]string{"name": "A", "email": "a@b.co", "role": "   ", "industry": "x"},
			wantKind:    RejectMissingFields,
			wantMissing: []string{"role"},
			wantMsg:     "missing required fields: role",
		},
		{
			name:     "no at sign",
			fields:   map[string]string{"name": "A", "email": "a.example.com", "role": "r", "industry": "x"},
			wantKind: RejectInvalidEmail,
			wantMsg:  `invalid email "a.example.com"`,
		},
		{
			name:     "no tld",
			fields:   map[string]string{"name": "A", "email": "a@localhost", "role": "r", "industry": "x"},
			wantKind: RejectInvalidEmail,
		},
		{
			name:     "embedded space",
			fields:   map[string]string{"name": "A", "email": "a b@c.io", "role": "r", "industry": "x"},
			wantKind: RejectInvalidEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ValidateRecord(7, tt.fields)
			require.Error(t, err)
			assert.True(t, eris.Is(err, model.ErrValidation))

			var re *RowError
			require.True(t, eris.As(err, &re))
			assert.Equal(t, 7, re.Row)
			assert.Equal(t, tt.wantKind, re.Kind)
			assert.Equal(t, tt.wantMissing, re.Missing)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, re.Message)
			}
			assert.Contains(t, err.Error(), "row 7")
		})
	}
}
