package models

import "math"

// ServerStatus mirrors the inventory service's server state.
type ServerStatus string

const (
	ServerStatusActive      ServerStatus = "active"
	ServerStatusMaintenance ServerStatus = "maintenance"
	ServerStatusOffline     ServerStatus = "offline"
)

// Server mirrors a VPN server record from the inventory service.
// This core writes back only CurrentUsers and Load.
type Server struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string       `gorm:"not null" json:"name"`
	CountryCode  string       `gorm:"type:varchar(8);index" json:"country_code"`
	CountryName  string       `json:"country_name"`
	CityName     string       `json:"city_name"`
	Load         int          `gorm:"not null;default:0" json:"load"`
	LatencyMs    int          `gorm:"not null;default:0" json:"latency"`
	CurrentUsers int          `gorm:"not null;default:0" json:"current_users"`
	MaxUsers     int          `gorm:"not null;default:0" json:"max_users"`
	Status       ServerStatus `gorm:"not null;type:varchar(16);index" json:"status"`
	PremiumOnly  bool         `gorm:"not null;default:false;index" json:"is_premium"`

	Timestamps
}

func (Server) TableName() string { return "vpn_servers" }

// LoadFor returns round(users/max*100) clamped to [0, 100].
func LoadFor(users, maxUsers int) int {
	if maxUsers <= 0 {
		if users > 0 {
			return 100
		}
		return 0
	}
	load := int(math.Round(float64(users) / float64(maxUsers) * 100))
	if load < 0 {
		return 0
	}
	if load > 100 {
		return 100
	}
	return load
}
