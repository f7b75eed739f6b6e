package repository

import (
	"kartis/internal/database"
)

// Repositories aggregates all repositories over one database handle.
type Repositories struct {
	Events        *EventRepository
	Tables        *TableRepository
	Registrations *RegistrationRepository
	Bans          *BanRepository
	CheckIns      *CheckInRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:        NewEventRepository(db),
		Tables:        NewTableRepository(db),
		Registrations: NewRegistrationRepository(db),
		Bans:          NewBanRepository(db),
		CheckIns:      NewCheckInRepository(db),
	}
}
