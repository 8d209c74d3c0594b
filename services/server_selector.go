// services/server_selector.go
package services

import (
	"context"
	"sort"
	"strings"

	"privacy-rewards-system/models"

	"gorm.io/gorm"
)

// Score weights spare capacity at 60% and latency at 40%; higher is better.
func Score(s models.Server) float64 {
	return 0.6*float64(100-s.Load) + 0.4*(100-float64(s.LatencyMs)/10)
}

// Rank returns a copy of servers sorted by descending score. Ties keep input order.
func Rank(servers []models.Server) []models.Server {
	ranked := make([]models.Server, len(servers))
	copy(ranked, servers)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i]) > Score(ranked[j])
	})
	return ranked
}

// Best returns the highest scoring server.
func Best(servers []models.Server) (*models.Server, error) {
	if len(servers) == 0 {
		return nil, ErrNoServersAvailable
	}
	ranked := Rank(servers)
	return &ranked[0], nil
}

// ServerQuery filters selector candidates.
type ServerQuery struct {
	Premium     bool
	CountryCode string
}

// ServerSelector loads candidate servers and ranks them. It never writes.
type ServerSelector struct {
	DB *gorm.DB
}

func NewServerSelector(db *gorm.DB) *ServerSelector {
	return &ServerSelector{DB: db}
}

// Candidates returns active servers visible to the caller, ordered by name.
func (s *ServerSelector) Candidates(ctx context.Context, q ServerQuery) ([]models.Server, error) {
	db := s.DB.WithContext(ctx).Where("status = ?", models.ServerStatusActive)
	if !q.Premium {
		db = db.Where("premium_only = ?", false)
	}
	if cc := strings.TrimSpace(q.CountryCode); cc != "" {
		db = db.Where("UPPER(country_code) = ?", strings.ToUpper(cc))
	}
	var servers []models.Server
	if err := db.Order("name ASC").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

// Ranked returns the candidates sorted best first.
func (s *ServerSelector) Ranked(ctx context.Context, q ServerQuery) ([]models.Server, error) {
	servers, err := s.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	return Rank(servers), nil
}

// Best returns the top ranked candidate, or ErrNoServersAvailable.
func (s *ServerSelector) Best(ctx context.Context, q ServerQuery) (*models.Server, error) {
	servers, err := s.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	return Best(servers)
}
