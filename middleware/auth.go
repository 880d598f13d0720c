package middleware

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
)

// AccountStore is what the ssh layer needs to find or register a local account
type AccountStore interface {
	ReadAccByPkHash(pkHash string) (error, *domain.Account)
	ReadAccByUsername(username string) (error, *domain.Account)
	CreateAccount(acc *domain.Account, actor *domain.Actor) error
}

// AuthMiddleware registers an account on the first login of an unknown public key
func AuthMiddleware(conf activitypub.Config, store AccountStore) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			pkHash := util.PkToHash(util.PublicKeyToString(s.PublicKey()))
			if _, err := EnsureAccount(store, conf, s.User(), pkHash); err != nil {
				log.Printf("Could not create a user for %s: %v", s.User(), err)
				wish.Fatalln(s, "could not create your account, try again later")
				return
			}
			util.LogPublicKey(s)
			h(s)
		}
	}
}

// EnsureAccount returns the account of pkHash, creating it with its local actor when missing.
// The ssh user name becomes the username when it is valid and free.
func EnsureAccount(store AccountStore, conf activitypub.Config, sshUser, pkHash string) (*domain.Account, error) {
	err, acc := store.ReadAccByPkHash(pkHash)
	if err == nil && acc != nil {
		return acc, nil
	}

	username := pickUsername(store, sshUser)
	keys := util.GeneratePemKeypair()
	acc = &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		Publickey:     pkHash,
		DisplayName:   username,
		WebPublicKey:  keys.Public,
		WebPrivateKey: keys.Private,
		CreatedAt:     time.Now(),
	}
	if err := store.CreateAccount(acc, activitypub.NewLocalActor(acc, conf)); err != nil {
		return nil, fmt.Errorf("create account %s: %w", username, err)
	}
	log.Printf("Registered new account @%s", username)
	return acc, nil
}

func pickUsername(store AccountStore, sshUser string) string {
	if util.ValidateUsername(sshUser) == nil && !usernameTaken(store, sshUser) {
		return sshUser
	}
	for {
		candidate := "user" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if !usernameTaken(store, candidate) {
			return candidate
		}
	}
}

func usernameTaken(store AccountStore, username string) bool {
	err, acc := store.ReadAccByUsername(username)
	return err == nil && acc != nil
}
