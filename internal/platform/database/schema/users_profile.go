// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserProfileTable represents the 'users.profile' table
type UserProfileTable struct {
	Table         string
	AccountID     string
	Identity      string
	Triggers      string
	DailyBaseline string
	DailyGoal     string
	UpdatedAt     string
}

// UserProfile is the schema definition for users.profile
var UserProfile = UserProfileTable{
	Table:         "users.profile",
	AccountID:     "accountid",
	Identity:      "identity",
	Triggers:      "triggers",
	DailyBaseline: "dailybaseline",
	DailyGoal:     "dailygoal",
	UpdatedAt:     "updatedat",
}
