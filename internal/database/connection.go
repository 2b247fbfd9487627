// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Stakeholder{},
		&models.RegistrationRequest{},
		&models.Partnership{},
		&models.Product{},
		&models.StageRecord{},
		&models.Offer{},
		&models.Transaction{},
		&models.Shipment{},
		&models.ShipmentUpdate{},
		&models.AuditLog{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Stakeholder indexes
		"CREATE INDEX IF NOT EXISTS idx_stakeholders_role_active ON stakeholders(role, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_registration_requests_status ON registration_requests(status, created_at DESC)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_products_farmer ON products(farmer_id)",
		"CREATE INDEX IF NOT EXISTS idx_products_stage_active ON products(current_stage, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_listed ON products(is_listed, sale_mode)",
		"CREATE INDEX IF NOT EXISTS idx_stage_records_product ON stage_records(product_id, sequence)",

		// Trading indexes
		"CREATE INDEX IF NOT EXISTS idx_offers_product_status ON offers(product_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_offers_creator ON offers(creator_id)",
		"CREATE INDEX IF NOT EXISTS idx_offers_counterparty ON offers(counterparty_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_offers_expiry ON offers(status, expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_product ON transactions(product_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_seller ON transactions(seller_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_buyer ON transactions(buyer_id)",

		// Shipment indexes
		"CREATE INDEX IF NOT EXISTS idx_shipments_product_status ON shipments(product_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_shipments_sender ON shipments(sender_id)",
		"CREATE INDEX IF NOT EXISTS idx_shipments_receiver ON shipments(receiver_id)",
		"CREATE INDEX IF NOT EXISTS idx_shipment_updates_shipment ON shipment_updates(shipment_id, created_at)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_action ON audit_logs(actor_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_delivered ON notifications(delivered, created_at)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin stakeholder
	var adminCount int64
	db.Model(&models.Stakeholder{}).Where("role = ?", models.RoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.Stakeholder{
			Email:        "admin@agritrace.io",
			Role:         models.RoleAdmin,
			BusinessName: "AgriTrace Platform",
			Location:     "HQ",
			IsActive:     true,
			RegisteredAt: time.Now(),
		}
		admin.BusinessLicense = "PLATFORM-ADMIN"
		admin.LicenseKey = "ADMIN-" + admin.BusinessLicense

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin stakeholder: %w", err)
		}

		log.Println("Default admin stakeholder created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
