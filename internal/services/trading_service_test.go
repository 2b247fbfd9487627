// internal/services/trading_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/agritrace/agritrace-backend/internal/models"
)

type TradingServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *TradingServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
}

// retailProduct returns a listed, RETAIL-stage batch owned by the farmer.
func (suite *TradingServiceTestSuite) retailProduct() (*models.Product, *models.Stakeholder) {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)
	suite.env.advanceTo(suite.T(), product, models.StageRetail)

	listed, err := suite.env.trading.ListForSale(farmer.ID, &ListForSaleRequest{
		ProductID: product.ID,
		Price:     5.00,
		Mode:      "retail",
	})
	suite.Require().NoError(err)
	return listed, farmer
}

func (suite *TradingServiceTestSuite) TestListAndUnlist() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	product := suite.env.createBatch(suite.T(), farmer)

	listed, err := suite.env.trading.ListForSale(farmer.ID, &ListForSaleRequest{
		ProductID: product.ID,
		Price:     3.25,
		Mode:      "wholesale",
	})
	suite.NoError(err)
	suite.True(listed.IsListed)
	suite.Equal(3.25, listed.ListingPrice)

	// Double listing conflicts.
	_, err = suite.env.trading.ListForSale(farmer.ID, &ListForSaleRequest{
		ProductID: product.ID,
		Price:     4.00,
		Mode:      "wholesale",
	})
	suite.Equal(CodeConflict, CodeOf(err))

	// Non-owners cannot unlist.
	stranger := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	_, err = suite.env.trading.Unlist(stranger.ID, product.ID)
	suite.Equal(CodeUnauthorized, CodeOf(err))

	unlisted, err := suite.env.trading.Unlist(farmer.ID, product.ID)
	suite.NoError(err)
	suite.False(unlisted.IsListed)
}

func (suite *TradingServiceTestSuite) TestOfferLifecycle() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	product := suite.env.createBatch(suite.T(), farmer)

	offer, err := suite.env.trading.CreateBuyOffer(processor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.75,
		Quantity:       100,
		DurationSecs:   3600,
	})
	suite.NoError(err)
	suite.Equal(models.OfferStatusOpen, offer.Status)

	// Only the counterparty accepts.
	_, err = suite.env.trading.AcceptOffer(processor.ID, offer.ID)
	suite.Equal(CodeUnauthorized, CodeOf(err))

	accepted, err := suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.NoError(err)
	suite.Equal(models.OfferStatusAccepted, accepted.Status)
	suite.NotNil(accepted.AcceptedAt)

	// Accepting twice conflicts.
	_, err = suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.Equal(CodeConflict, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestOfferExpiresLazily() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	product := suite.env.createBatch(suite.T(), farmer)

	offer, err := suite.env.trading.CreateBuyOffer(processor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.75,
		Quantity:       10,
		DurationSecs:   1,
	})
	suite.NoError(err)

	// Push the deadline into the past instead of sleeping.
	err = suite.env.db.Model(&models.Offer{}).Where("id = ?", offer.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	suite.NoError(err)

	// The read path flips it to EXPIRED in place.
	reloaded, err := suite.env.trading.GetOffer(offer.ID)
	suite.NoError(err)
	suite.Equal(models.OfferStatusExpired, reloaded.Status)

	_, err = suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.Equal(CodeExpired, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestSingleAcceptedOfferPerBatch() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	first := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	second := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	product := suite.env.createBatch(suite.T(), farmer)

	offerA, err := suite.env.trading.CreateBuyOffer(first.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.00,
		Quantity:       50,
		DurationSecs:   3600,
	})
	suite.NoError(err)
	offerB, err := suite.env.trading.CreateBuyOffer(second.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.10,
		Quantity:       50,
		DurationSecs:   3600,
	})
	suite.NoError(err)

	_, err = suite.env.trading.AcceptOffer(farmer.ID, offerA.ID)
	suite.NoError(err)

	_, err = suite.env.trading.AcceptOffer(farmer.ID, offerB.ID)
	suite.Equal(CodeConflict, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestCancelOfferIsCreatorOnly() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	product := suite.env.createBatch(suite.T(), farmer)

	offer, err := suite.env.trading.CreateBuyOffer(processor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.00,
		Quantity:       10,
		DurationSecs:   3600,
	})
	suite.NoError(err)

	_, err = suite.env.trading.CancelOffer(farmer.ID, offer.ID)
	suite.Equal(CodeUnauthorized, CodeOf(err))

	cancelled, err := suite.env.trading.CancelOffer(processor.ID, offer.ID)
	suite.NoError(err)
	suite.Equal(models.OfferStatusCancelled, cancelled.Status)
}

func (suite *TradingServiceTestSuite) TestTransferOwnershipRequiresAcceptedOffer() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	product := suite.env.createBatch(suite.T(), farmer)

	// No accepted offer yet.
	_, err := suite.env.trading.TransferOwnership(farmer.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: processor.ID,
	})
	suite.Equal(CodeConflict, CodeOf(err))

	offer, err := suite.env.trading.CreateBuyOffer(processor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.50,
		Quantity:       100,
		DurationSecs:   3600,
	})
	suite.NoError(err)
	_, err = suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.NoError(err)

	transferred, err := suite.env.trading.TransferOwnership(farmer.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: processor.ID,
	})
	suite.NoError(err)
	suite.Equal(processor.ID, transferred.OwnerID)
	suite.False(transferred.IsListed)

	// The old owner lost control.
	_, err = suite.env.trading.TransferOwnership(farmer.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: processor.ID,
	})
	suite.Equal(CodeUnauthorized, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestTransferResolvesOfferAndBatchTradesAgain() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	distributor := suite.env.registerStakeholder(suite.T(), models.RoleDistributor)
	product := suite.env.createBatch(suite.T(), farmer)

	offer, err := suite.env.trading.CreateBuyOffer(processor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.50,
		Quantity:       100,
		DurationSecs:   3600,
	})
	suite.Require().NoError(err)
	_, err = suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.Require().NoError(err)
	_, err = suite.env.trading.TransferOwnership(farmer.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: processor.ID,
	})
	suite.Require().NoError(err)

	// The transfer closed the cycle.
	resolved, err := suite.env.trading.GetOffer(offer.ID)
	suite.NoError(err)
	suite.Equal(models.OfferStatusCompleted, resolved.Status)

	// The new owner can relist and trade the batch onward.
	_, err = suite.env.trading.ListForSale(processor.ID, &ListForSaleRequest{
		ProductID: product.ID,
		Price:     3.50,
		Mode:      "wholesale",
	})
	suite.NoError(err)

	next, err := suite.env.trading.CreateBuyOffer(distributor.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: processor.ID,
		Price:          3.50,
		Quantity:       100,
		DurationSecs:   3600,
	})
	suite.NoError(err)
	_, err = suite.env.trading.AcceptOffer(processor.ID, next.ID)
	suite.NoError(err)

	transferred, err := suite.env.trading.TransferOwnership(processor.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: distributor.ID,
	})
	suite.NoError(err)
	suite.Equal(distributor.ID, transferred.OwnerID)
}

func (suite *TradingServiceTestSuite) TestTransferBlockedOutsideAdjacency() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	retailer := suite.env.registerStakeholder(suite.T(), models.RoleRetailer)
	product := suite.env.createBatch(suite.T(), farmer)

	offer, err := suite.env.trading.CreateBuyOffer(retailer.ID, &CreateOfferRequest{
		ProductID:      product.ID,
		CounterpartyID: farmer.ID,
		Price:          2.50,
		Quantity:       100,
		DurationSecs:   3600,
	})
	suite.NoError(err)
	_, err = suite.env.trading.AcceptOffer(farmer.ID, offer.ID)
	suite.NoError(err)

	// Farmer -> retailer is not a legal trade pair without a partnership.
	_, err = suite.env.trading.TransferOwnership(farmer.ID, &TransferOwnershipRequest{
		ProductID:  product.ID,
		NewOwnerID: retailer.ID,
	})
	suite.Equal(CodeUnauthorized, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestConsumerPurchasePartialQuantity() {
	product, farmer := suite.retailProduct()
	consumer := suite.env.registerConsumer(suite.T())

	txn, err := suite.env.trading.PurchaseWithImmediateOwnership(consumer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      10,
		PaymentAmount: 50.00,
	})
	suite.NoError(err)
	suite.Equal(models.TransactionKindConsumerPurchase, txn.Kind)
	suite.Equal(consumer.ID, txn.BuyerID)
	suite.Equal(farmer.ID, txn.SellerID)

	reloaded, err := suite.env.products.Get(product.ID)
	suite.NoError(err)
	suite.Equal(90, reloaded.Quantity)
	suite.Equal(farmer.ID, reloaded.OwnerID) // partial purchase keeps the batch
	suite.True(reloaded.IsListed)
}

func (suite *TradingServiceTestSuite) TestConsumerPurchaseFullQuantityTransfersBatch() {
	product, _ := suite.retailProduct()
	consumer := suite.env.registerConsumer(suite.T())

	_, err := suite.env.trading.PurchaseWithImmediateOwnership(consumer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      100,
		PaymentAmount: 500.00,
	})
	suite.NoError(err)

	reloaded, err := suite.env.products.Get(product.ID)
	suite.NoError(err)
	suite.Equal(0, reloaded.Quantity)
	suite.Equal(consumer.ID, reloaded.OwnerID)
	suite.False(reloaded.IsListed)
}

func (suite *TradingServiceTestSuite) TestPurchaseValidations() {
	product, farmer := suite.retailProduct()
	consumer := suite.env.registerConsumer(suite.T())

	// Underpayment.
	_, err := suite.env.trading.PurchaseWithImmediateOwnership(consumer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      10,
		PaymentAmount: 49.99,
	})
	suite.Equal(CodeValidationFailed, CodeOf(err))

	// Over-quantity.
	_, err = suite.env.trading.PurchaseWithImmediateOwnership(consumer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      101,
		PaymentAmount: 1000.00,
	})
	suite.Equal(CodeValidationFailed, CodeOf(err))

	// Owner cannot buy their own batch.
	_, err = suite.env.trading.PurchaseWithImmediateOwnership(farmer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      10,
		PaymentAmount: 50.00,
	})
	suite.Equal(CodeValidationFailed, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestPurchaseBlockedWhileInTransit() {
	product, farmer := suite.retailProduct()
	consumer := suite.env.registerConsumer(suite.T())
	receiver := suite.env.registerStakeholder(suite.T(), models.RoleRetailer)

	_, err := suite.env.shipments.CreateShipment(farmer.ID, &CreateShipmentRequest{
		ProductID:  product.ID,
		ReceiverID: receiver.ID,
	})
	suite.NoError(err)

	_, err = suite.env.trading.PurchaseWithImmediateOwnership(consumer.ID, &PurchaseRequest{
		ProductID:     product.ID,
		Quantity:      10,
		PaymentAmount: 50.00,
	})
	suite.Equal(CodeConflict, CodeOf(err))
}

func (suite *TradingServiceTestSuite) TestRecordTransactionPartyOnly() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	stranger := suite.env.registerStakeholder(suite.T(), models.RoleRetailer)
	product := suite.env.createBatch(suite.T(), farmer)

	_, err := suite.env.trading.RecordTransaction(stranger.ID, &RecordTransactionRequest{
		ProductID: product.ID,
		SellerID:  farmer.ID,
		BuyerID:   processor.ID,
		UnitPrice: 2.50,
		Quantity:  100,
		Kind:      "trade_sale",
	})
	suite.Equal(CodeUnauthorized, CodeOf(err))

	txn, err := suite.env.trading.RecordTransaction(farmer.ID, &RecordTransactionRequest{
		ProductID: product.ID,
		SellerID:  farmer.ID,
		BuyerID:   processor.ID,
		UnitPrice: 2.50,
		Quantity:  100,
		Kind:      "trade_sale",
	})
	suite.NoError(err)

	listed, total, err := suite.env.trading.ListTransactions(farmer.ID, testPagination())
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.Equal(txn.ID, listed[0].ID)
}

func TestTradingServiceSuite(t *testing.T) {
	suite.Run(t, new(TradingServiceTestSuite))
}
