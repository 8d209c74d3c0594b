package models

// AccountUser is a local snapshot of the account service's user record.
// Owned by the account service; populated via the account sync worker.
// This core reads it for premium flags, leaderboard names and referral code prefixes.
type AccountUser struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"` // external user id
	Username string `gorm:"index;not null" json:"username"`
	Premium  bool   `gorm:"not null;default:false" json:"premium"`

	// PremiumExpiresAt is ms since epoch; zero when the account never had premium.
	PremiumExpiresAt int64 `json:"premium_expires_at,omitempty"`

	Timestamps
}

// IsPremiumAt reports whether the account holds an unexpired premium flag at nowMs.
func (u *AccountUser) IsPremiumAt(nowMs int64) bool {
	if u == nil || !u.Premium {
		return false
	}
	return u.PremiumExpiresAt == 0 || u.PremiumExpiresAt > nowMs
}
