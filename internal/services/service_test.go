// internal/services/service_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agritrace/agritrace-backend/internal/cache"
	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/database"
	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

func testPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 50, Order: "desc"}
}

const testPassword = "TestPass123"

// testEnv wires the full service graph over an in-memory database. No
// redis and no webhook sink: the cache is disabled and notifications
// only persist rows.
type testEnv struct {
	db           *gorm.DB
	stakeholders *StakeholderService
	products     *ProductService
	shipments    *ShipmentService
	trading      *TradingService
	provenance   *ProvenanceService
	admin        *models.Stakeholder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Named shared-cache DSN so every pooled connection sees the same
	// database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(db))

	cfg := &config.Config{Environment: "test"}
	c := cache.New(cfg.Redis)

	notifications := NewNotificationService(db, cfg)
	stakeholders := NewStakeholderService(db, notifications)
	products := NewProductService(db, stakeholders, notifications)
	shipments := NewShipmentService(db, stakeholders, c, notifications)
	trading := NewTradingService(db, stakeholders, shipments, notifications)
	provenance := NewProvenanceService(db, products, shipments, c)

	admin := &models.Stakeholder{
		Email:           "admin@test.local",
		Role:            models.RoleAdmin,
		BusinessName:    "Test Admin",
		BusinessLicense: "ADMIN-TEST",
		IsActive:        true,
		RegisteredAt:    time.Now(),
		LicenseKey:      "ADMIN-TEST-KEY",
	}
	require.NoError(t, admin.SetPassword(testPassword))
	require.NoError(t, db.Create(admin).Error)

	return &testEnv{
		db:           db,
		stakeholders: stakeholders,
		products:     products,
		shipments:    shipments,
		trading:      trading,
		provenance:   provenance,
		admin:        admin,
	}
}

// registerStakeholder creates a unique stakeholder of the given role via
// the admin path.
func (e *testEnv) registerStakeholder(t *testing.T, role models.StakeholderRole) *models.Stakeholder {
	t.Helper()

	suffix := uuid.NewString()[:8]
	stakeholder, err := e.stakeholders.Register(e.admin.ID, &RegisterStakeholderRequest{
		Email:           fmt.Sprintf("%s-%s@test.local", role, suffix),
		Password:        testPassword,
		Role:            string(role),
		BusinessName:    fmt.Sprintf("%s %s", role, suffix),
		BusinessLicense: fmt.Sprintf("LIC-%s-%s", role, suffix),
		Location:        "Test Valley",
	})
	require.NoError(t, err)
	return stakeholder
}

func (e *testEnv) registerConsumer(t *testing.T) *models.Stakeholder {
	t.Helper()

	suffix := uuid.NewString()[:8]
	consumer, err := e.stakeholders.RegisterConsumer(&RegisterConsumerRequest{
		Email:    fmt.Sprintf("consumer-%s@test.local", suffix),
		Password: testPassword,
		Name:     "Consumer " + suffix,
	})
	require.NoError(t, err)
	return consumer
}

// createBatch makes a FARM-stage product owned by the farmer.
func (e *testEnv) createBatch(t *testing.T, farmer *models.Stakeholder) *models.Product {
	t.Helper()

	product, err := e.products.CreateBatch(farmer.ID, &CreateBatchRequest{
		Name:           "Organic Mangoes",
		Description:    "Alphonso mangoes, first harvest",
		Quantity:       100,
		BasePrice:      2.50,
		OriginLocation: "Ratnagiri",
		Data:           `{"variety":"alphonso","harvest":"2026-04"}`,
	})
	require.NoError(t, err)
	return product
}

// advanceTo walks the batch from its current stage up to target, using
// freshly registered actors holding the authorized role for each stage.
func (e *testEnv) advanceTo(t *testing.T, product *models.Product, target models.ProductStage) map[models.ProductStage]*models.Stakeholder {
	t.Helper()

	actors := make(map[models.ProductStage]*models.Stakeholder)
	for stage := product.CurrentStage + 1; stage <= target; stage++ {
		role, required := models.RoleForStage(stage)
		var actor *models.Stakeholder
		if required {
			actor = e.registerStakeholder(t, role)
		} else {
			actor = e.registerStakeholder(t, models.RoleRetailer)
		}
		actors[stage] = actor

		updated, err := e.products.UpdateStage(actor.ID, product.ID, stage,
			fmt.Sprintf(`{"stage":"%s"}`, stage))
		require.NoError(t, err)
		*product = *updated
	}
	return actors
}
