package middleware

import (
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
)

// SessionStore is the read side a console session needs on top of common.Store
type SessionStore interface {
	common.Store
	ReadAccByPkHash(pkHash string) (error, *domain.Account)
	ReadActorByAccountId(accountId uuid.UUID) (error, *domain.Actor)
}

// MainTui serves the console of the account owning the session's public key.
// resolver is nil when federation is disabled.
func MainTui(conf activitypub.Config, store SessionStore, actions common.Actions, resolver common.Resolver) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		session, err := NewSession(store, actions, resolver, util.PkToHash(util.PublicKeyToString(s.PublicKey())))
		if err != nil {
			log.Println("Could not retrieve the user:", err)
			return nil
		}

		m := ui.NewModel(session, conf.Domain, conf.MaxContentLength, pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}

// NewSession loads the account and actor behind pkHash
func NewSession(store SessionStore, actions common.Actions, resolver common.Resolver, pkHash string) (*common.Session, error) {
	err, acc := store.ReadAccByPkHash(pkHash)
	if err != nil {
		return nil, err
	}
	err, actor := store.ReadActorByAccountId(acc.Id)
	if err != nil {
		return nil, err
	}
	return &common.Session{
		Account:  *acc,
		ActorId:  actor.Id,
		Store:    store,
		Actions:  actions,
		Resolver: resolver,
	}, nil
}
