package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	ContextActivityStreams = "https://www.w3.org/ns/activitystreams"
	ContextSecurity        = "https://w3id.org/security/v1"
	Public                 = "https://www.w3.org/ns/activitystreams#Public"
)

// Object is anything that can sit in an activity's object slot.
// The set of variants is closed: *Note, *Article, *Page, *Tombstone, *Person, *Activity and Reference.
type Object interface {
	isObject()
}

// Reference is an object given only by its URI, or an object type this server does not model
type Reference string

// Content is the body shared by every creatable object
type Content struct {
	Context      any                   `json:"@context,omitempty"`
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	AttributedTo string                `json:"attributedTo,omitempty"`
	Name         string                `json:"name,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	Content      string                `json:"content,omitempty"`
	URL          LinkValue             `json:"url,omitempty"`
	InReplyTo    LinkValue             `json:"inReplyTo,omitempty"`
	Audience     StringList            `json:"audience,omitempty"`
	Sensitive    bool                  `json:"sensitive,omitempty"`
	Attachment   OneOrMany[Attachment] `json:"attachment,omitempty"`
	Tag          OneOrMany[Tag]        `json:"tag,omitempty"`
	To           StringList            `json:"to,omitempty"`
	CC           StringList            `json:"cc,omitempty"`
	Published    string                `json:"published,omitempty"`
	Updated      string                `json:"updated,omitempty"`
}

// Note is a short post
type Note struct{ Content }

// Article is a long-form post with a title
type Article struct{ Content }

// Page is a titled link post (Lemmy style)
type Page struct{ Content }

type Tombstone struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	FormerType string `json:"formerType,omitempty"`
	Deleted    string `json:"deleted,omitempty"`
}

// Person covers every actor type: Person, Group, Service, Application, Organization
type Person struct {
	Context           any              `json:"@context,omitempty"`
	ID                string           `json:"id"`
	Type              string           `json:"type"`
	PreferredUsername string           `json:"preferredUsername"`
	Name              string           `json:"name,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	URL               LinkValue        `json:"url,omitempty"`
	Inbox             string           `json:"inbox"`
	Outbox            string           `json:"outbox,omitempty"`
	Followers         string           `json:"followers,omitempty"`
	Following         string           `json:"following,omitempty"`
	Endpoints         *Endpoints       `json:"endpoints,omitempty"`
	Icon              OneOrMany[Image] `json:"icon,omitempty"`
	PublicKey         PublicKey        `json:"publicKey"`
	Published         string           `json:"published,omitempty"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

type Image struct {
	Type      string    `json:"type"`
	MediaType string    `json:"mediaType,omitempty"`
	URL       LinkValue `json:"url"`
}

// Attachment is a Document, Image or Link attached to a post
type Attachment struct {
	Type      string    `json:"type"`
	MediaType string    `json:"mediaType,omitempty"`
	URL       LinkValue `json:"url,omitempty"`
	Href      string    `json:"href,omitempty"`
	Name      string    `json:"name,omitempty"`
}

// Link returns the target of the attachment, whichever field the peer used
func (a Attachment) Link() string {
	if a.Href != "" {
		return a.Href
	}
	return string(a.URL)
}

type Tag struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Href string `json:"href,omitempty"`
}

// Activity is a typed action. Object is decoded into one of the Object variants.
type Activity struct {
	Context   any        `json:"@context,omitempty"`
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Actor     string     `json:"actor"`
	Object    Object     `json:"object,omitempty"`
	To        StringList `json:"to,omitempty"`
	CC        StringList `json:"cc,omitempty"`
	Audience  StringList `json:"audience,omitempty"`
	Published string     `json:"published,omitempty"`

	// ActorObject is the descriptor of the acting actor when known, filled by the protocol layer
	ActorObject *Person `json:"-"`
}

func (Reference) isObject()  {}
func (*Note) isObject()      {}
func (*Article) isObject()   {}
func (*Page) isObject()      {}
func (*Tombstone) isObject() {}
func (*Person) isObject()    {}
func (*Activity) isObject()  {}

// ObjectID returns the URI of any object variant
func ObjectID(obj Object) string {
	switch o := obj.(type) {
	case nil:
		return ""
	case Reference:
		return string(o)
	case *Note:
		return o.ID
	case *Article:
		return o.ID
	case *Page:
		return o.ID
	case *Tombstone:
		return o.ID
	case *Person:
		return o.ID
	case *Activity:
		return o.ID
	default:
		return ""
	}
}

// ObjectType returns the ActivityStreams type of an object, empty for references
func ObjectType(obj Object) string {
	switch o := obj.(type) {
	case *Note:
		return o.Type
	case *Article:
		return o.Type
	case *Page:
		return o.Type
	case *Tombstone:
		return o.Type
	case *Person:
		return o.Type
	case *Activity:
		return o.Type
	default:
		return ""
	}
}

var actorTypes = map[string]bool{
	"Person":       true,
	"Group":        true,
	"Service":      true,
	"Application":  true,
	"Organization": true,
}

var activityTypes = map[string]bool{
	"Create":   true,
	"Update":   true,
	"Delete":   true,
	"Follow":   true,
	"Accept":   true,
	"Reject":   true,
	"Undo":     true,
	"Like":     true,
	"Announce": true,
}

// DecodeObject turns a raw JSON object slot into an Object variant.
// Strings become References, arrays decode their first element, unknown types keep only their id.
func DecodeObject(data json.RawMessage) (Object, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '"':
		var uri string
		if err := json.Unmarshal(data, &uri); err != nil {
			return nil, err
		}
		return Reference(uri), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		return DecodeObject(items[0])
	case '{':
	default:
		return nil, fmt.Errorf("unexpected object json: %.20s", data)
	}

	var head struct {
		ID   string          `json:"id"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	typ := firstString(head.Type)

	var obj Object
	switch {
	case typ == "Note":
		obj = &Note{}
	case typ == "Article":
		obj = &Article{}
	case typ == "Page":
		obj = &Page{}
	case typ == "Tombstone":
		obj = &Tombstone{}
	case actorTypes[typ]:
		obj = &Person{}
	case activityTypes[typ]:
		obj = &Activity{}
	default:
		return Reference(head.ID), nil
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return obj, nil
}

func firstString(data json.RawMessage) string {
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	var ss []string
	if json.Unmarshal(data, &ss) == nil && len(ss) > 0 {
		return ss[0]
	}
	return ""
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw struct {
		Context   any             `json:"@context"`
		ID        string          `json:"id"`
		Type      json.RawMessage `json:"type"`
		Actor     json.RawMessage `json:"actor"`
		Object    json.RawMessage `json:"object"`
		To        StringList      `json:"to"`
		CC        StringList      `json:"cc"`
		Audience  StringList      `json:"audience"`
		Published string          `json:"published"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Activity{
		Context:   raw.Context,
		ID:        raw.ID,
		Type:      firstString(raw.Type),
		To:        raw.To,
		CC:        raw.CC,
		Audience:  raw.Audience,
		Published: raw.Published,
	}

	actor, err := DecodeObject(raw.Actor)
	if err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	if person, ok := actor.(*Person); ok {
		a.ActorObject = person
	}
	a.Actor = ObjectID(actor)

	a.Object, err = DecodeObject(raw.Object)
	if err != nil {
		return fmt.Errorf("object: %w", err)
	}
	return nil
}

// StringList is an addressing field that peers send as a string, an array, or objects with an id
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var items OneOrMany[json.RawMessage]
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	list := make(StringList, 0, len(items))
	for _, item := range items {
		var link LinkValue
		if err := json.Unmarshal(item, &link); err == nil && link != "" {
			list = append(list, string(link))
		}
	}
	*l = list
	return nil
}

// Contains reports whether uri is addressed
func (l StringList) Contains(uri string) bool {
	for _, s := range l {
		if s == uri {
			return true
		}
	}
	return false
}

// LinkValue is a URI that peers may send as a string, a Link object or an array of either
type LinkValue string

func (v *LinkValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = LinkValue(s)
	case '[':
		var items []LinkValue
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = ""
		for _, item := range items {
			if item != "" {
				*v = item
				break
			}
		}
	case '{':
		var link struct {
			Href string `json:"href"`
			URL  string `json:"url"`
			ID   string `json:"id"`
		}
		if err := json.Unmarshal(data, &link); err != nil {
			return err
		}
		switch {
		case link.Href != "":
			*v = LinkValue(link.Href)
		case link.URL != "":
			*v = LinkValue(link.URL)
		default:
			*v = LinkValue(link.ID)
		}
	default:
		return fmt.Errorf("unexpected link json: %.20s", data)
	}
	return nil
}

// OneOrMany decodes either a single value or an array of values
type OneOrMany[T any] []T

func (m *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*m = items
		return nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*m = OneOrMany[T]{item}
	return nil
}

func (m OneOrMany[T]) MarshalJSON() ([]byte, error) {
	if len(m) == 1 {
		return json.Marshal(m[0])
	}
	return json.Marshal([]T(m))
}

// First returns the first element, or the zero value
func (m OneOrMany[T]) First() T {
	var zero T
	if len(m) == 0 {
		return zero
	}
	return m[0]
}
