package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is a transport-level publisher identifier within a channel.
// Numeric identities are carried as their decimal string form.
type Identity string

const (
	// ScreenIdentityOffset is the numeric offset separating camera
	// identities from their derived screen-share identities. Camera
	// identities must stay below it.
	ScreenIdentityOffset int64 = 1_000_000

	// ScreenIdentitySuffix marks derived screen identities in the
	// string identity scheme.
	ScreenIdentitySuffix = "-screen"
)

func (id Identity) String() string { return string(id) }

// Numeric reports the identity's numeric value when it uses the
// numeric scheme.
func (id Identity) Numeric() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsScreen reports whether the identity matches either derived-identity
// pattern. This is a fallback heuristic; callers that know the
// originating client should trust that tag instead.
func (id Identity) IsScreen() bool {
	if n, ok := id.Numeric(); ok {
		return n > ScreenIdentityOffset
	}
	return strings.HasSuffix(string(id), ScreenIdentitySuffix)
}

// DeriveScreenIdentity returns the screen-share identity paired with a
// camera identity. Numeric camera identities at or above the offset are
// rejected rather than silently colliding with the derived range.
func DeriveScreenIdentity(camera Identity) (Identity, error) {
	if n, ok := camera.Numeric(); ok {
		if n >= ScreenIdentityOffset {
			return "", fmt.Errorf("derive screen identity for %q: %w", camera, ErrIdentityRange)
		}
		return Identity(strconv.FormatInt(n+ScreenIdentityOffset, 10)), nil
	}
	return camera + ScreenIdentitySuffix, nil
}

// OwnerOfScreenIdentity maps a screen identity back to its owning
// camera identity. The second return is false when the identity does
// not look like a derived one.
func OwnerOfScreenIdentity(screen Identity) (Identity, bool) {
	if n, ok := screen.Numeric(); ok {
		if n <= ScreenIdentityOffset {
			return "", false
		}
		return Identity(strconv.FormatInt(n-ScreenIdentityOffset, 10)), true
	}
	if s, ok := strings.CutSuffix(string(screen), ScreenIdentitySuffix); ok && s != "" {
		return Identity(s), true
	}
	return "", false
}
