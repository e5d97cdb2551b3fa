// Package uid generates string identifiers.
//
// UUID (v7, time ordered) identifies auth requests. ObjectIDGenerator issues
// the shorter client ids that end up in QR codes.
package uid

import "github.com/google/uuid"

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}

// NewUUID returns a v7 UUID generator. Ids sort by creation time so the
// auth_requests primary key grows at the tail.
func NewUUID() StringID { return uuidV7{} }

type uuidV7 struct{}

func (uuidV7) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
