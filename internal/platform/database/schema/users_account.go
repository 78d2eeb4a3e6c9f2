// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns used by the Postgres repositories.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table          string
	ID             string
	Username       string
	Email          string
	Password       string
	DisplayName    string
	Provider       string
	ProviderUserID string
	IsVerified     string
	CreatedAt      string
	UpdatedAt      string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:          "users.account",
	ID:             "id",
	Username:       "username",
	Email:          "email",
	Password:       "passwordhash",
	DisplayName:    "displayname",
	Provider:       "provider",
	ProviderUserID: "provideruserid",
	IsVerified:     "isverified",
	CreatedAt:      "createdat",
	UpdatedAt:      "updatedat",
}

// Columns returns all standard column names in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.Password, t.DisplayName, t.Provider,
		t.ProviderUserID, t.IsVerified, t.CreatedAt, t.UpdatedAt,
	}
}

// Unique constraint names, matched by dberr.IsUniqueViolation.
const (
	UserAccountUsernameKey = "account_username_key"
	UserAccountEmailKey    = "account_email_key"
	UserAccountProviderKey = "account_provider_key"
)
