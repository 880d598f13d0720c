package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a local user. Its federated identity is the Actor whose UserId points here.
type Account struct {
	Id            uuid.UUID
	Username      string
	Publickey     string // hash of the SSH public key
	DisplayName   string
	Summary       string
	WebPublicKey  string
	WebPrivateKey string
	CreatedAt     time.Time
}
