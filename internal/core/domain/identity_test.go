package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveScreenIdentity_NumericRoundTrip(t *testing.T) {
	for _, camera := range []Identity{"1", "42", "999999"} {
		screen, err := DeriveScreenIdentity(camera)
		assert.NoError(t, err)
		assert.True(t, screen.IsScreen(), "derived identity %s should look like a screen identity", screen)

		owner, ok := OwnerOfScreenIdentity(screen)
		assert.True(t, ok)
		assert.Equal(t, camera, owner)
	}
}

func TestDeriveScreenIdentity_StringRoundTrip(t *testing.T) {
	camera := Identity("alice@example.com")
	screen, err := DeriveScreenIdentity(camera)
	assert.NoError(t, err)
	assert.Equal(t, Identity("alice@example.com-screen"), screen)
	assert.True(t, screen.IsScreen())

	owner, ok := OwnerOfScreenIdentity(screen)
	assert.True(t, ok)
	assert.Equal(t, camera, owner)
}

func TestDeriveScreenIdentity_RejectsCollidingRange(t *testing.T) {
	_, err := DeriveScreenIdentity(Identity("1000000"))
	assert.True(t, errors.Is(err, ErrIdentityRange))

	_, err = DeriveScreenIdentity(Identity("5000000"))
	assert.True(t, errors.Is(err, ErrIdentityRange))
}

func TestOwnerOfScreenIdentity_NonScreenInputs(t *testing.T) {
	cases := []Identity{"42", "1000000", "bob", "-screen"}
	for _, id := range cases {
		_, ok := OwnerOfScreenIdentity(id)
		assert.False(t, ok, "identity %q must not resolve to an owner", id)
	}
}

func TestIsScreen(t *testing.T) {
	assert.False(t, Identity("42").IsScreen())
	assert.False(t, Identity("1000000").IsScreen())
	assert.True(t, Identity("1000042").IsScreen())
	assert.False(t, Identity("bob").IsScreen())
	assert.True(t, Identity("bob-screen").IsScreen())
}

func TestParticipantName_Placeholder(t *testing.T) {
	p := &Participant{Identity: "7"}
	assert.Equal(t, "Participant 7", p.Name())

	p.DisplayName = "Grace"
	assert.Equal(t, "Grace", p.Name())
}
