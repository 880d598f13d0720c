package web

import (
	"fmt"
	"time"

	"github.com/deemkeen/stegofed/activitypub"
	"github.com/gorilla/feeds"
)

const feedSize = 50

// GetRSS returns the RSS feed of a local user's top-level posts, served from the profile cache
func GetRSS(store Store, cache *activitypub.ProfileCache, conf activitypub.Config, username string) (error, []byte) {
	err, actor := store.ReadActorByUsername(username)
	if err != nil {
		return err, nil
	}

	doc, err := cache.GetOrRender(actor.Id, activitypub.ViewFeed, func() ([]byte, error) {
		err, posts := store.ReadPostsByActorId(actor.Id, feedSize)
		if err != nil {
			return nil, fmt.Errorf("posts of %s: %w", username, err)
		}

		name := actor.DisplayName
		if name == "" {
			name = actor.Username
		}
		feed := &feeds.Feed{
			Title:       fmt.Sprintf("%s (@%s@%s)", name, actor.Username, conf.Domain),
			Link:        &feeds.Link{Href: actor.URI},
			Description: fmt.Sprintf("Posts by @%s", actor.Username),
			Author:      &feeds.Author{Name: name},
			Created:     actor.CreatedAt,
		}

		if posts != nil {
			for _, post := range *posts {
				if post.IsReply() {
					continue
				}
				link := post.URL
				if link == "" {
					link = post.URI
				}
				item := &feeds.Item{
					Id:      post.URI,
					Title:   post.CreatedAt.UTC().Format(time.RFC1123),
					Link:    &feeds.Link{Href: link},
					Content: post.Content,
					Author:  &feeds.Author{Name: name},
					Created: post.CreatedAt,
				}
				if post.EditedAt != nil {
					item.Updated = *post.EditedAt
				}
				feed.Items = append(feed.Items, item)
			}
		}

		rss, err := feed.ToRss()
		if err != nil {
			return nil, err
		}
		return []byte(rss), nil
	})
	return err, doc
}
