package fieldcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/memberpass/internal/model"
)

func TestNew_MissingSecret(t *testing.T) {
	_, err := New("", Policy{})
	assert.ErrorIs(t, err, model.ErrMissingSecret)
}

func TestCipher_Roundtrip(t *testing.T) {
	c, err := New("secret", Policy{Mask: true})
	require.NoError(t, err)

	for _, plaintext := range []string{"Ana", "", "Jürgen-Özdemir", "2019"} {
		sealed, err := c.Seal("first_name", plaintext)
		require.NoError(t, err)

		got, err := c.Open("first_name", sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCipher_FreshNonce(t *testing.T) {
	c, err := New("secret", Policy{})
	require.NoError(t, err)

	a, err := c.Seal("role", "Mitglied")
	require.NoError(t, err)
	b, err := c.Seal("role", "Mitglied")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_FieldBinding(t *testing.T) {
	c, err := New("secret", Policy{})
	require.NoError(t, err)

	sealed, err := c.Seal("first_name", "Ana")
	require.NoError(t, err)

	_, err = c.Open("last_name", sealed)
	assert.ErrorIs(t, err, model.ErrDecrypt)
}

func TestCipher_WrongKey(t *testing.T) {
	a, err := New("secret-a", Policy{})
	require.NoError(t, err)
	b, err := New("secret-b", Policy{})
	require.NoError(t, err)

	sealed, err := a.Seal("role", "Vorstand")
	require.NoError(t, err)

	_, err = b.Open("role", sealed)
	assert.ErrorIs(t, err, model.ErrDecrypt)
}

func TestCipher_OpenMasked(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		sealed     string
		wantValue  string
		wantMasked bool
		wantErr    bool
	}{
		{name: "mask enabled", policy: Policy{Mask: true}, sealed: "garbage", wantValue: DefaultPlaceholder, wantMasked: true},
		{name: "custom placeholder", policy: Policy{Mask: true, Placeholder: "(hidden)"}, sealed: "AQ", wantValue: "(hidden)", wantMasked: true},
		{name: "mask disabled", policy: Policy{Mask: false}, sealed: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("secret", tt.policy)
			require.NoError(t, err)

			value, masked, err := c.OpenMasked("last_name", tt.sealed)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrDecrypt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantMasked, masked)
		})
	}
}

func TestCipher_OpenMasked_Valid(t *testing.T) {
	c, err := New("secret", Policy{Mask: true})
	require.NoError(t, err)

	sealed, err := c.Seal("last_name", "Schmidt")
	require.NoError(t, err)

	value, masked, err := c.OpenMasked("last_name", sealed)
	require.NoError(t, err)
	assert.False(t, masked)
	assert.Equal(t, "Schmidt", value)
}
