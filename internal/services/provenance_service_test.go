// internal/services/provenance_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agritrace/agritrace-backend/internal/models"
)

type ProvenanceServiceTestSuite struct {
	suite.Suite
	env *testEnv
	ctx context.Context
}

func (suite *ProvenanceServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
}

func (suite *ProvenanceServiceTestSuite) TestCleanChainIsAuthentic() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	suite.env.advanceTo(suite.T(), product, models.StageRetail)

	result, err := suite.env.provenance.VerifyProductAuthenticity(suite.ctx, product.ID)
	suite.NoError(err)
	suite.True(result.IsAuthentic)
	suite.Equal(product.BatchNumber, result.BatchNumber)
}

func (suite *ProvenanceServiceTestSuite) TestDeactivatedActorFlagsChain() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	actors := suite.env.advanceTo(suite.T(), product, models.StageProcessing)

	_, err := suite.env.stakeholders.Deactivate(suite.env.admin.ID, actors[models.StageProcessing].ID)
	suite.NoError(err)

	result, err := suite.env.provenance.VerifyProductAuthenticity(suite.ctx, product.ID)
	suite.NoError(err)
	suite.False(result.IsAuthentic)
	suite.NotEmpty(result.Reasons)
}

func (suite *ProvenanceServiceTestSuite) TestTamperFlagsChain() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)

	err := suite.env.db.Model(&models.StageRecord{}).
		Where("product_id = ? AND stage = ?", product.ID, models.StageFarm).
		Update("data", `{"variety":"doctored"}`).Error
	suite.NoError(err)

	result, err := suite.env.provenance.VerifyProductAuthenticity(suite.ctx, product.ID)
	suite.NoError(err)
	suite.False(result.IsAuthentic)
	suite.Equal(CodeIntegrityViolation, result.Code)
}

func (suite *ProvenanceServiceTestSuite) TestMissingStageBreaksTrace() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	suite.env.advanceTo(suite.T(), product, models.StageDistribution)

	report, err := suite.env.provenance.GetTraceabilityReport(suite.ctx, product.ID)
	suite.NoError(err)
	suite.True(report.IsFullyTraced)
	suite.Len(report.Stages, 3)

	// Remove the middle record out of band.
	err = suite.env.db.Where("product_id = ? AND stage = ?", product.ID, models.StageProcessing).
		Delete(&models.StageRecord{}).Error
	suite.NoError(err)

	report, err = suite.env.provenance.GetTraceabilityReport(suite.ctx, product.ID)
	suite.NoError(err)
	suite.False(report.IsFullyTraced)

	result, err := suite.env.provenance.VerifyProductAuthenticity(suite.ctx, product.ID)
	suite.NoError(err)
	suite.False(result.IsAuthentic)
}

func (suite *ProvenanceServiceTestSuite) TestShipmentTaintBreaksSupplyChain() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	actors := suite.env.advanceTo(suite.T(), product, models.StageProcessing)
	receiver := actors[models.StageProcessing]

	shipment, err := suite.env.shipments.CreateShipment(farmer.ID, &CreateShipmentRequest{
		ProductID:  product.ID,
		ReceiverID: receiver.ID,
	})
	suite.NoError(err)

	result, err := suite.env.provenance.VerifyCompleteSupplyChain(suite.ctx, product.ID)
	suite.NoError(err)
	suite.True(result.IsAuthentic)

	_, err = suite.env.shipments.Cancel(farmer.ID, shipment.ID, "order withdrawn")
	suite.NoError(err)

	result, err = suite.env.provenance.VerifyCompleteSupplyChain(suite.ctx, product.ID)
	suite.NoError(err)
	suite.False(result.IsAuthentic)
	suite.Equal(CodeIntegrityViolation, result.Code)
	suite.NotNil(result.ShipmentStatus)
	suite.Equal(models.ShipmentStatusCancelled, *result.ShipmentStatus)
}

func (suite *ProvenanceServiceTestSuite) TestCompleteReportCarriesCustodyHistory() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	actors := suite.env.advanceTo(suite.T(), product, models.StageProcessing)

	shipment, err := suite.env.shipments.CreateShipment(farmer.ID, &CreateShipmentRequest{
		ProductID:  product.ID,
		ReceiverID: actors[models.StageProcessing].ID,
	})
	suite.NoError(err)
	_, err = suite.env.shipments.PickupShipment(farmer.ID, shipment.ID, "hub")
	suite.NoError(err)

	report, err := suite.env.provenance.GetCompleteTraceabilityReport(suite.ctx, product.ID)
	suite.NoError(err)
	suite.NotNil(report.Shipment)
	suite.Len(report.ShipmentHistory, 2)
}

func (suite *ProvenanceServiceTestSuite) TestConsumerSummaryByBatchAndTracking() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	actors := suite.env.advanceTo(suite.T(), product, models.StageProcessing)

	summary, err := suite.env.provenance.GetConsumerSummary(suite.ctx, product.BatchNumber)
	suite.NoError(err)
	suite.Equal("Organic Mangoes", summary.ProductName)
	suite.Equal(farmer.BusinessName, summary.FarmerName)
	suite.True(summary.IsAuthentic)
	suite.Len(summary.Timeline, 2)

	shipment, err := suite.env.shipments.CreateShipment(farmer.ID, &CreateShipmentRequest{
		ProductID:  product.ID,
		ReceiverID: actors[models.StageProcessing].ID,
	})
	suite.NoError(err)

	byTracking, err := suite.env.provenance.GetConsumerSummary(suite.ctx, shipment.TrackingNumber)
	suite.NoError(err)
	suite.Equal("Organic Mangoes", byTracking.ProductName)

	_, err = suite.env.provenance.GetConsumerSummary(suite.ctx, "BATCH-0-UNKNOWN")
	suite.Equal(CodeNotFound, CodeOf(err))

	_, err = suite.env.provenance.GetConsumerSummary(suite.ctx, "")
	suite.Equal(CodeValidationFailed, CodeOf(err))
}

func TestProvenanceServiceSuite(t *testing.T) {
	suite.Run(t, new(ProvenanceServiceTestSuite))
}
