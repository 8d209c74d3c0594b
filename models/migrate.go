package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table owned or mirrored by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AccountUser{},
		&Server{},
		&Balance{},
		&Transaction{},
		&MissionDefinition{},
		&MissionInstance{},
		&Referral{},
		&ReferralCode{},
		&Session{},
		&TrackerLog{},
		&PrivacyScore{},
	)
}
