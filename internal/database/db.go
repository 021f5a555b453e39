package database

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	log.Println("Running database migrations...")

	err := DB.AutoMigrate(
		&Organization{},
		&OrganizationMember{},
		&Project{},
		&Team{},
		&User{},
		&Environment{},
		&Release{},
		&Commit{},
		&Integration{},
		// Group and related per-user/per-group records
		&Group{},
		&GroupBookmark{},
		&GroupSeen{},
		&GroupSubscription{},
		&GroupAssignee{},
		&GroupShare{},
		&GroupLink{},
		&GroupSnooze{},
		&GroupResolution{},
		&UserOption{},
		// Ingestion
		&GroupTagValue{},
		&Event{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults(adminUsername, adminPasswordHash string) error {
	log.Println("Initializing default database records...")

	org, err := ensureDefaultOrganization()
	if err != nil {
		return err
	}

	if err := ensureAdminUser(org, adminUsername, adminPasswordHash); err != nil {
		return err
	}

	return nil
}

// ensureDefaultOrganization creates the default organization and project on
// first run.
func ensureDefaultOrganization() (*Organization, error) {
	var org Organization
	err := DB.First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	org = Organization{Slug: "default", Name: "Default"}
	if err := DB.Create(&org).Error; err != nil {
		return nil, fmt.Errorf("failed to create default organization: %w", err)
	}

	project := Project{
		OrganizationID: org.ID,
		Slug:           "internal",
		Name:           "Internal",
	}
	if err := DB.Create(&project).Error; err != nil {
		return nil, fmt.Errorf("failed to create default project: %w", err)
	}

	log.Printf("Created default organization %q with project %q", org.Slug, project.Slug)
	return &org, nil
}

// ensureAdminUser creates the admin account and its org membership on first
// run. The password hash comes from config so this package stays free of
// crypto concerns.
func ensureAdminUser(org *Organization, username, passwordHash string) error {
	var user User
	err := DB.Where("username = ?", username).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user = User{
		Username:     username,
		Name:         username,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := DB.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	member := OrganizationMember{OrganizationID: org.ID, UserID: user.ID}
	if err := DB.Create(&member).Error; err != nil {
		return fmt.Errorf("failed to create admin org membership: %w", err)
	}

	log.Printf("Created admin user %q (ID: %d)", username, user.ID)
	return nil
}

// GetUserByUsername returns an active user by username
func GetUserByUsername(username string) (*User, error) {
	var user User
	if err := DB.Where("username = ? AND is_active = ?", username, true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
