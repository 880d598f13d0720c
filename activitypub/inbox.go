package activitypub

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/deemkeen/stegofed/domain"
)

// maxInboxBody bounds inbound activity documents
const maxInboxBody = 1 * 1024 * 1024

// ProcessInbox verifies one inbox delivery and dispatches it. username names the
// addressed personal inbox and is empty for the shared inbox.
func (e *Engine) ProcessInbox(r *http.Request, body []byte, username string) (Outcome, error) {
	if username != "" {
		if err, _ := e.db.ReadActorByUsername(username); err != nil {
			return Ignored, fmt.Errorf("%w: no local user %s", domain.ErrNotFound, username)
		}
	}

	activity, err := e.protocol.ParseInbound(r, body)
	if err != nil {
		return Rejected, err
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)
	return e.Dispatch(r.Context(), Inbound, activity, ""), nil
}

// HandleInbox serves POST requests to a personal or the shared inbox
func (e *Engine) HandleInbox(w http.ResponseWriter, r *http.Request, username string) {
	if r.Header.Get("Signature") == "" && r.Header.Get("Authorization") == "" {
		log.Printf("Inbox: Missing HTTP signature")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboxBody+1))
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(body) > maxInboxBody {
		log.Printf("Inbox: Request body too large")
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	outcome, err := e.ProcessInbox(r, body, username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrMalformed):
		log.Printf("Inbox: Failed to parse activity: %v", err)
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	case errors.Is(err, ErrGone):
		// the signer no longer exists, nothing to verify against
		log.Printf("Inbox: Dropping delivery from gone actor: %v", err)
		w.WriteHeader(http.StatusAccepted)
		return
	case err != nil:
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if outcome == Failed {
		http.Error(w, "Failed to process activity", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
