package postgres

import (
	"github.com/orbitacademy/subscription-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Subscribers ports.SubscriberRepository
	EventLog    ports.EventLogRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Subscribers: &subscriberRepository{db: db},
		EventLog:    &eventLogRepository{db: db},
	}
}
