// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"slices"
	"strings"
	"time"
)

// Status is a card's position in the moderation lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Statuses lists every status in lifecycle order. Stats and validation
// iterate over it so a new status only has to be added here.
var Statuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusActive,
	StatusInactive,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

func (s Status) String() string { return string(s) }

// Card is one greeting-card submission.
type Card struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Message        string    `json:"message"`
	RecipientName  string    `json:"recipientName,omitempty"`
	RecipientEmail string    `json:"recipientEmail,omitempty"`
	ImageURL       string    `json:"imageUrl"`
	Tags           []string  `json:"tags"`
	Likes          int64     `json:"likes"`
	Status         Status    `json:"status"`
	SubmittedBy    string    `json:"submittedBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CardPatch carries the editable fields of a card.
// A nil field means "leave unchanged".
//
// Status is only here so an update that tries to set it can be refused:
// status changes go through the transition engine, never through a patch.
type CardPatch struct {
	Title          *string
	Description    *string
	Message        *string
	RecipientName  *string
	RecipientEmail *string
	ImageURL       *string
	Tags           []string // nil = unchanged, empty = clear
	Status         *string
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Message == nil &&
		p.RecipientName == nil && p.RecipientEmail == nil && p.ImageURL == nil &&
		p.Tags == nil && p.Status == nil
}

// Apply copies every non-nil field of p onto c. Status is never applied.
func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Message != nil {
		c.Message = *p.Message
	}
	if p.RecipientName != nil {
		c.RecipientName = *p.RecipientName
	}
	if p.RecipientEmail != nil {
		c.RecipientEmail = *p.RecipientEmail
	}
	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}
	if p.Tags != nil {
		c.Tags = NormalizeTags(p.Tags)
	}
}

// CardQuery is a search over cards. Zero-valued fields do not filter.
type CardQuery struct {
	Text   string
	Tags   []string
	Status Status
}

// NormalizeTags trims each tag, drops blanks and collapses duplicates.
// The result is sorted so two equal sets always compare equal.
// Matching is case-sensitive: "Cake" and "cake" are different tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
