package sealer

import (
	"crypto/sha256"
	"fmt"
)

// Purpose identifies what a sealed secret is used for.
type Purpose string

const (
	// PurposeKeyMaterial scopes OCRA key material.
	PurposeKeyMaterial Purpose = "key_material"
	// PurposeProvisioningPassword scopes DSKPP provisioning passwords.
	PurposeProvisioningPassword Purpose = "provisioning_password"
)

// Scope binds a sealed secret to its owner and purpose.
type Scope struct {
	Subject string
	Purpose Purpose
}

// aad hashes a labelled canonical form, fixed length and free of separator
// ambiguity.
func (s Scope) aad() []byte {
	canonical := fmt.Sprintf("subject=%s\npurpose=%s\n", s.Subject, s.Purpose)
	sum := sha256.Sum256([]byte(canonical))
	return sum[:]
}
