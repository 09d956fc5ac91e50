package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"trims and sorts", []string{" Cake", "Birthday "}, []string{"Birthday", "Cake"}},
		{"collapses duplicates", []string{"Cake", "Cake", " Cake "}, []string{"Cake"}},
		{"drops blanks", []string{"", "  ", "Cake"}, []string{"Cake"}},
		{"case-sensitive", []string{"cake", "Cake"}, []string{"Cake", "cake"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestCardPatch(t *testing.T) {
	title := "New"
	status := "active"

	assert.True(t, CardPatch{}.Empty())
	assert.False(t, CardPatch{Title: &title}.Empty())
	assert.False(t, CardPatch{Tags: []string{}}.Empty(), "an empty tag list clears tags")
	assert.False(t, CardPatch{Status: &status}.Empty())

	c := &Card{Title: "Old", Message: "keep", Tags: []string{"a"}, Status: StatusPending}
	CardPatch{Title: &title, Tags: []string{"b", "b ", "a"}, Status: &status}.Apply(c)

	assert.Equal(t, "New", c.Title)
	assert.Equal(t, "keep", c.Message)
	assert.Equal(t, []string{"a", "b"}, c.Tags)
	assert.Equal(t, StatusPending, c.Status, "Apply never changes status")
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("Pending").Valid())
}

func TestStatusCountsTotal(t *testing.T) {
	assert.Equal(t, int64(0), StatusCounts{}.Total())
	assert.Equal(t, int64(6), StatusCounts{StatusPending: 1, StatusActive: 5, StatusRejected: 0}.Total())
}

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleMember, RoleMember, true},
		{RoleMember, RoleReviewer, false},
		{RoleReviewer, RoleReviewer, true},
		{RoleReviewer, RoleAdmin, false},
		{RoleAdmin, RoleReviewer, true},
		{RoleAdmin, RoleAdmin, true},
		{Role("root"), RoleMember, false},
		{Role(""), RoleMember, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.AtLeast(tt.min), "%q.AtLeast(%q)", tt.role, tt.min)
	}

	assert.False(t, RoleMember.CanReview())
	assert.True(t, RoleReviewer.CanReview())
	assert.True(t, RoleAdmin.CanReview())
}

func TestActor(t *testing.T) {
	assert.True(t, Anonymous.IsAnonymous())
	assert.Equal(t, "anonymous", Anonymous.Label())
	assert.Equal(t, "rita", Actor{ID: "u1", Name: "rita"}.Label())
	assert.Equal(t, "u1", Actor{ID: "u1"}.Label())
	assert.False(t, Actor{ID: "u1"}.IsAnonymous())
}
