// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"courier/internal/models"
	"courier/internal/repository"
	"courier/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	// TargetEmail is the account the demo network is built around.
	TargetEmail string
	// Friends is how many connected friends to create, at most len(friendNames).
	Friends int
	// InFlight friends dispatch a note to the target right after seeding.
	InFlight int
	// Clean wipes courier data before seeding.
	Clean bool
	// RandSeed makes the generated data reproducible when non-zero.
	RandSeed int64
}

// Result counts what a run created. Rows that already existed are not counted.
type Result struct {
	TargetUserID        uint
	UsersCreated        int
	ConnectionsCreated  int
	MessengersCreated   int
	ShipmentsDispatched int
}

const defaultTargetEmail = "alan@test.com"

var friendNames = []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy"}

// DefaultOptions mirrors the demo network used in local development.
func DefaultOptions() Options {
	return Options{TargetEmail: defaultTargetEmail, Friends: len(friendNames)}
}

// Seeder builds a demo network: one target user connected to a set of
// friends, each pair sharing a messenger.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	transit *service.TransitService
}

// NewSeeder creates a seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.TargetEmail == "" {
		opts.TargetEmail = defaultTargetEmail
	}
	if opts.Friends <= 0 || opts.Friends > len(friendNames) {
		opts.Friends = len(friendNames)
	}
	if opts.InFlight > opts.Friends {
		opts.InFlight = opts.Friends
	}
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(db, opts.RandSeed),
		transit: service.NewTransitService(repository.NewStore(db)),
	}
}

// Run seeds the network. It is safe to run repeatedly: existing users,
// connections and messengers are reused, and in-flight notes are only
// dispatched by messengers created in this run.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if s.opts.Clean {
		if err := Clean(s.db); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	target, created, err := s.factory.EnsureUser(strings.ToLower(s.opts.TargetEmail), func(u *models.User) {
		u.FirstName = "Alan"
		u.LastName = "Main"
	})
	if err != nil {
		return nil, err
	}
	res.TargetUserID = target.ID
	if created {
		res.UsersCreated++
	}
	log.Printf("Seeding for user: %s (id=%d)", target.Email, target.ID)

	for i := 0; i < s.opts.Friends; i++ {
		name := friendNames[i]
		friend, created, err := s.factory.EnsureUser(strings.ToLower(name)+"@example.com", func(u *models.User) {
			u.FirstName = name
			u.LastName = "Doe"
		})
		if err != nil {
			return nil, err
		}
		if created {
			res.UsersCreated++
			log.Printf("Created user: %s", name)
		}

		conn, created, err := s.factory.EnsureConnection(target, friend)
		if err != nil {
			return nil, err
		}
		if created {
			res.ConnectionsCreated++
			log.Printf("Created connection with %s", name)
		}

		_, created, err = s.factory.EnsureMessenger(conn, name+"'s Messenger")
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}
		res.MessengersCreated++
		log.Printf("Created messenger for %s", name)

		if res.ShipmentsDispatched < s.opts.InFlight {
			items := []service.GiftItemInput{{Type: models.GiftItemTypeText, Content: s.factory.GiftNote()}}
			if _, err := s.transit.Dispatch(ctx, friend.ID, target.ID, items); err != nil {
				return nil, fmt.Errorf("dispatch from %s: %w", name, err)
			}
			res.ShipmentsDispatched++
			log.Printf("%s dispatched a note", name)
		}
	}

	return res, nil
}

// Clean removes all courier data, children first.
func Clean(db *gorm.DB) error {
	tx := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.GiftItem{}, &models.Shipment{}, &models.Messenger{}, &models.Connection{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clean %T: %w", model, err)
		}
	}
	log.Println("Cleaned courier data")
	return nil
}
