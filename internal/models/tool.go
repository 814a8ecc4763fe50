package models

import (
	"time"

	"github.com/lib/pq"
)

// ToolLinkType enumerates how a tool is exposed to the client.
type ToolLinkType string

const (
	ToolLinkExternal ToolLinkType = "external"
	ToolLinkInternal ToolLinkType = "internal"
	ToolLinkCustom   ToolLinkType = "custom"
)

// Tool is a gated engineering utility in the catalog.
type Tool struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Category       string         `db:"category" json:"category"`
	AccessLevel    UserRole       `db:"access_level" json:"access_level"`
	LinkType       ToolLinkType   `db:"link_type" json:"link_type"`
	Link           *string        `db:"link" json:"link,omitempty"`
	CustomHTML     *string        `db:"custom_html" json:"custom_html,omitempty"`
	RestrictedCPFs pq.StringArray `db:"restricted_cpfs" json:"restricted_cpfs,omitempty"`
	AverageRating  float64        `db:"average_rating" json:"average_rating"`
	TotalRatings   int            `db:"total_ratings" json:"total_ratings"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Reachable recomputes the tool's lock state for the given caller. Admins are
// always unlocked. A non-empty restricted CPF list overrides tier gating for
// listed users; everyone else falls back to tier dominance against the
// tool's access level.
func (t *Tool) Reachable(access Access, effectiveRole UserRole, cpf string) bool {
	if access.IsAdmin {
		return true
	}
	if len(t.RestrictedCPFs) > 0 {
		for _, allowed := range t.RestrictedCPFs {
			if allowed == cpf {
				return true
			}
		}
		return false
	}
	return TierAtLeast(effectiveRole, t.AccessLevel)
}

// ToolView is the client-facing projection of a tool. Locked tools keep
// their metadata but drop the link and embedded content.
type ToolView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	AccessLevel   UserRole     `json:"access_level"`
	LinkType      ToolLinkType `json:"link_type"`
	Link          *string      `json:"link,omitempty"`
	CustomHTML    *string      `json:"custom_html,omitempty"`
	AverageRating float64      `json:"average_rating"`
	TotalRatings  int          `json:"total_ratings"`
	Locked        bool         `json:"locked"`
}

// View projects the tool for a caller, stripping gated content when locked.
func (t *Tool) View(access Access, effectiveRole UserRole, cpf string) ToolView {
	view := ToolView{
		ID:            t.ID,
		Name:          t.Name,
		Category:      t.Category,
		AccessLevel:   t.AccessLevel,
		LinkType:      t.LinkType,
		AverageRating: t.AverageRating,
		TotalRatings:  t.TotalRatings,
	}
	if t.Reachable(access, effectiveRole, cpf) {
		view.Link = t.Link
		view.CustomHTML = t.CustomHTML
	} else {
		view.Locked = true
	}
	return view
}

// ToolCreateRequest is the admin payload for adding a tool.
type ToolCreateRequest struct {
	Name           string       `json:"name" validate:"required,min=2,max=120"`
	Category       string       `json:"category" validate:"required,min=2,max=60"`
	AccessLevel    UserRole     `json:"access_level" validate:"required,oneof=E-BASIC E-TOOL E-MASTER"`
	LinkType       ToolLinkType `json:"link_type" validate:"required,oneof=external internal custom"`
	Link           *string      `json:"link,omitempty" validate:"omitempty,url"`
	CustomHTML     *string      `json:"custom_html,omitempty"`
	RestrictedCPFs []string     `json:"restricted_cpfs,omitempty" validate:"omitempty,dive,cpf"`
}

// ToolUpdateRequest is the admin payload for editing a tool.
type ToolUpdateRequest struct {
	Name           *string       `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Category       *string       `json:"category,omitempty" validate:"omitempty,min=2,max=60"`
	AccessLevel    *UserRole     `json:"access_level,omitempty" validate:"omitempty,oneof=E-BASIC E-TOOL E-MASTER"`
	LinkType       *ToolLinkType `json:"link_type,omitempty" validate:"omitempty,oneof=external internal custom"`
	Link           *string       `json:"link,omitempty" validate:"omitempty,url"`
	CustomHTML     *string       `json:"custom_html,omitempty"`
	RestrictedCPFs *[]string     `json:"restricted_cpfs,omitempty" validate:"omitempty,dive,cpf"`
}

// RateToolRequest carries a user's rating submission.
type RateToolRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// ToolRating stores one user's rating of a tool. toolId+userId is unique;
// re-rating updates the existing row.
type ToolRating struct {
	ID        string    `db:"id" json:"id"`
	ToolID    string    `db:"tool_id" json:"tool_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
