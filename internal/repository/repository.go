package repository

import (
	"github.com/pzhurov/fitrank/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Member  MemberRepository
	Metrics MetricsRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Member:  NewMemberRepository(db),
		Metrics: NewMetricsRepository(db),
	}
}
