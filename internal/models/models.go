// package models defines the data model for connected Pinterest accounts and their boards
package models

import (
	"fmt"
	"sort"
	"time"
)

// Validator is implemented by models that check their own invariants before being persisted.
type Validator interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

var (
	_ Validator = Account{}
	_ Validator = Board{}
)

// Account is a connected provider account. ID is the provider username.
type Account struct {
	ID            string `json:"id"`
	User          User   `json:"user"`
	Token         Token  `json:"token"`
	LastRefreshed int64  `json:"lastRefreshed"` // unix milliseconds
}

// NewAccount builds an [Account] for user, stamped with now.
func NewAccount(user User, token Token, now time.Time) Account {
	return Account{
		ID:            user.Username,
		User:          user,
		Token:         token,
		LastRefreshed: now.UnixMilli(),
	}
}

// Validate checks that the account can be keyed and used for API calls.
func (a Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if a.Token.AccessToken == "" {
		return fmt.Errorf("account %s has no access token", a.ID)
	}
	return nil
}

// RefreshedAt returns LastRefreshed as a [time.Time].
func (a Account) RefreshedAt() time.Time {
	return time.UnixMilli(a.LastRefreshed)
}

// DisplayName prefers the business name when one is set.
func (a Account) DisplayName() string {
	if a.User.BusinessName != "" {
		return a.User.BusinessName
	}
	return a.ID
}

// User is the provider profile returned by /user_account.
type User struct {
	Username       string `json:"username" yaml:"username"`
	AccountType    string `json:"account_type" yaml:"account_type"`
	ProfileImage   string `json:"profile_image,omitempty" yaml:"profile_image,omitempty"`
	WebsiteURL     string `json:"website_url,omitempty" yaml:"website_url,omitempty"`
	BusinessName   string `json:"business_name,omitempty" yaml:"business_name,omitempty"`
	BoardCount     int    `json:"board_count,omitempty" yaml:"board_count,omitempty"`
	PinCount       int    `json:"pin_count,omitempty" yaml:"pin_count,omitempty"`
	FollowerCount  int    `json:"follower_count,omitempty" yaml:"follower_count,omitempty"`
	FollowingCount int    `json:"following_count,omitempty" yaml:"following_count,omitempty"`
	MonthlyViews   int    `json:"monthly_views,omitempty" yaml:"monthly_views,omitempty"`
}

// Token is the OAuth token issued by the provider.
type Token struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	TokenType             string `json:"token_type,omitempty"`
	ExpiresIn             int64  `json:"expires_in,omitempty"` // seconds
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in,omitempty"`
	Scope                 string `json:"scope,omitempty"`
}

// ExpiresAt returns when the access token expires given the time it was issued.
// The zero time is returned when the provider sent no lifetime.
func (t Token) ExpiresAt(issued time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return issued.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Board is a provider board. Boards are always held in a list scoped to one account.
type Board struct {
	ID                  string     `json:"id" yaml:"id"`
	Name                string     `json:"name" yaml:"name"`
	Description         string     `json:"description,omitempty" yaml:"description,omitempty"`
	Privacy             string     `json:"privacy,omitempty" yaml:"privacy,omitempty"`
	Owner               BoardOwner `json:"owner" yaml:"owner"`
	PinCount            int        `json:"pin_count,omitempty" yaml:"pin_count,omitempty"`
	FollowerCount       int        `json:"follower_count,omitempty" yaml:"follower_count,omitempty"`
	CollaboratorCount   int        `json:"collaborator_count,omitempty" yaml:"collaborator_count,omitempty"`
	CreatedAt           string     `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	BoardPinsModifiedAt string     `json:"board_pins_modified_at,omitempty" yaml:"board_pins_modified_at,omitempty"`
	Media               BoardMedia `json:"media" yaml:"media"`
}

// BoardOwner identifies the account that owns a board.
type BoardOwner struct {
	Username string `json:"username" yaml:"username"`
}

// BoardMedia holds cover image details.
type BoardMedia struct {
	ImageCoverURL string `json:"image_cover_url,omitempty" yaml:"image_cover_url,omitempty"`
}

// Validate checks that the board has an identifier.
func (b Board) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("board id is required")
	}
	return nil
}

// SortAccounts orders accounts by ID so listings from unordered backends are stable.
func SortAccounts(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
}

// CloneBoards deep copies a boards map.
func CloneBoards(boards map[string][]Board) map[string][]Board {
	out := make(map[string][]Board, len(boards))
	for id, list := range boards {
		out[id] = append([]Board(nil), list...)
	}
	return out
}
