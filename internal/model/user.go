package model

import (
	"fmt"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// Provider names a social login source.
type Provider string

// Supported providers.
const (
	ProviderFacebook Provider = "facebook"
	ProviderGoogle   Provider = "google"
)

// SocialLogin is the credential block a provider returns for a user.
type SocialLogin struct {
	ID    string            `json:"id"`
	Name  string            `json:"name,omitempty"`
	Email string            `json:"email,omitempty"`
	Extra map[string]string `json:"extra,omitempty"`
}

// User is the biz shape of an account.
type User struct {
	ID        string       `json:"_id,omitempty"`
	Name      string       `json:"name"`
	Email     string       `json:"email,omitempty"`
	Facebook  *SocialLogin `json:"facebook,omitempty"`
	Google    *SocialLogin `json:"google,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	// LocationIDs is derived at read time from location memberships.
	LocationIDs []string `json:"locationIds"`
}

// UserDoc is the stored shape of an account.
type UserDoc struct {
	ID        ident.ID
	Name      string
	Email     string
	Facebook  *SocialLogin
	Google    *SocialLogin
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserDetails is what a single login event reports about a user.
type UserDetails struct {
	Name     string
	Email    string
	Facebook *SocialLogin
	Google   *SocialLogin
}

// Source returns the single provider block of a login event.
func (d UserDetails) Source() (Provider, *SocialLogin, error) {
	switch {
	case d.Facebook != nil && d.Google != nil:
		return "", nil, fmt.Errorf("%w: more than one login source", errs.ErrValidation)
	case d.Facebook != nil && d.Facebook.ID != "":
		return ProviderFacebook, d.Facebook, nil
	case d.Google != nil && d.Google.ID != "":
		return ProviderGoogle, d.Google, nil
	}
	return "", nil, fmt.Errorf("%w: missing login source", errs.ErrValidation)
}

// SetSocial stores a provider block on the document.
func (d *UserDoc) SetSocial(p Provider, s *SocialLogin) {
	c := *s
	switch p {
	case ProviderFacebook:
		d.Facebook = &c
	case ProviderGoogle:
		d.Google = &c
	}
}

// UserFromDoc converts identifiers to their external form. LocationIDs is left for the caller.
func UserFromDoc(d UserDoc) User {
	return User{
		ID:        externalID(d.ID),
		Name:      d.Name,
		Email:     d.Email,
		Facebook:  cloneSocial(d.Facebook),
		Google:    cloneSocial(d.Google),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func cloneSocial(s *SocialLogin) *SocialLogin {
	if s == nil {
		return nil
	}
	c := *s
	if s.Extra != nil {
		c.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// CloneUserDoc deep-copies a stored user.
func CloneUserDoc(d UserDoc) UserDoc {
	c := d
	c.Facebook = cloneSocial(d.Facebook)
	c.Google = cloneSocial(d.Google)
	return c
}

// Tokens is an issued session.
type Tokens struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
