// internal/services/stakeholder_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type StakeholderServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *StakeholderServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
}

func (suite *StakeholderServiceTestSuite) TestRegisterAssignsLicenseKey() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)

	suite.True(utils.ValidLicenseKeyFormat(farmer.LicenseKey))
	suite.True(farmer.IsActive)
	suite.Equal(models.RoleFarmer, farmer.Role)
}

func (suite *StakeholderServiceTestSuite) TestRegisterRequiresAdmin() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)

	_, err := suite.env.stakeholders.Register(farmer.ID, &RegisterStakeholderRequest{
		Email:           "another@test.local",
		Password:        testPassword,
		Role:            "processor",
		BusinessName:    "Another Co",
		BusinessLicense: "LIC-ANOTHER",
	})
	suite.Equal(CodeUnauthorized, CodeOf(err))
}

func (suite *StakeholderServiceTestSuite) TestDuplicateBusinessLicenseRejected() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)

	_, err := suite.env.stakeholders.Register(suite.env.admin.ID, &RegisterStakeholderRequest{
		Email:           "second@test.local",
		Password:        testPassword,
		Role:            "processor",
		BusinessName:    "Second Co",
		BusinessLicense: farmer.BusinessLicense,
	})
	suite.Equal(CodeConflict, CodeOf(err))
}

func (suite *StakeholderServiceTestSuite) TestVerifyLicenseKey() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)

	result, err := suite.env.stakeholders.VerifyLicenseKey(farmer.LicenseKey)
	suite.NoError(err)
	suite.True(result.Valid)
	suite.Equal(farmer.ID, result.OwnerID)
	suite.Equal("farmer", result.Role)
}

func (suite *StakeholderServiceTestSuite) TestVerifyUnknownKeyIsInvalidResult() {
	result, err := suite.env.stakeholders.VerifyLicenseKey("SC-00000000-00000000-00000000")
	suite.NoError(err)
	suite.False(result.Valid)

	// Well-formed but unregistered
	result, err = suite.env.stakeholders.VerifyLicenseKey("AG-00000000-00000000-00000000")
	suite.NoError(err)
	suite.False(result.Valid)
}

func (suite *StakeholderServiceTestSuite) TestRegenerateInvalidatesOldKey() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	oldKey := farmer.LicenseKey

	updated, err := suite.env.stakeholders.RegenerateLicenseKey(suite.env.admin.ID, farmer.ID)
	suite.NoError(err)
	suite.NotEqual(oldKey, updated.LicenseKey)
	suite.True(utils.ValidLicenseKeyFormat(updated.LicenseKey))

	old, err := suite.env.stakeholders.VerifyLicenseKey(oldKey)
	suite.NoError(err)
	suite.False(old.Valid)

	fresh, err := suite.env.stakeholders.VerifyLicenseKey(updated.LicenseKey)
	suite.NoError(err)
	suite.True(fresh.Valid)
}

func (suite *StakeholderServiceTestSuite) TestDeactivateRevokesKeyAndConflictsWhenRepeated() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)

	_, err := suite.env.stakeholders.Deactivate(suite.env.admin.ID, farmer.ID)
	suite.NoError(err)

	result, err := suite.env.stakeholders.VerifyLicenseKey(farmer.LicenseKey)
	suite.NoError(err)
	suite.False(result.Valid)

	_, err = suite.env.stakeholders.Deactivate(suite.env.admin.ID, farmer.ID)
	suite.Equal(CodeConflict, CodeOf(err))

	_, err = suite.env.stakeholders.Reactivate(suite.env.admin.ID, farmer.ID)
	suite.NoError(err)
	_, err = suite.env.stakeholders.Reactivate(suite.env.admin.ID, farmer.ID)
	suite.Equal(CodeConflict, CodeOf(err))
}

func (suite *StakeholderServiceTestSuite) TestRegistrationRequestFlow() {
	request, err := suite.env.stakeholders.SubmitRequest(&RegisterStakeholderRequest{
		Email:           "applicant@test.local",
		Password:        testPassword,
		Role:            "processor",
		BusinessName:    "Applicant Processing",
		BusinessLicense: "LIC-APPLICANT",
		Location:        "Pune",
	})
	suite.NoError(err)
	suite.Equal(models.RequestStatusPending, request.Status)

	// Duplicate pending request for same identity is rejected.
	_, err = suite.env.stakeholders.SubmitRequest(&RegisterStakeholderRequest{
		Email:           "applicant@test.local",
		Password:        testPassword,
		Role:            "processor",
		BusinessName:    "Applicant Processing",
		BusinessLicense: "LIC-APPLICANT",
	})
	suite.Equal(CodeConflict, CodeOf(err))

	stakeholder, err := suite.env.stakeholders.ApproveRequest(suite.env.admin.ID, request.ID)
	suite.NoError(err)
	suite.Equal("applicant@test.local", stakeholder.Email)
	suite.True(utils.ValidLicenseKeyFormat(stakeholder.LicenseKey))

	// Approval is final.
	_, err = suite.env.stakeholders.ApproveRequest(suite.env.admin.ID, request.ID)
	suite.Equal(CodeConflict, CodeOf(err))

	// The applicant can log in with the password from the request.
	authed, err := suite.env.stakeholders.Authenticate(&LoginRequest{
		Email:    "applicant@test.local",
		Password: testPassword,
	})
	suite.NoError(err)
	suite.Equal(stakeholder.ID, authed.ID)
}

func (suite *StakeholderServiceTestSuite) TestRejectRequestNeedsReason() {
	request, err := suite.env.stakeholders.SubmitRequest(&RegisterStakeholderRequest{
		Email:           "reject-me@test.local",
		Password:        testPassword,
		Role:            "retailer",
		BusinessName:    "Reject Me",
		BusinessLicense: "LIC-REJECT",
	})
	suite.NoError(err)

	_, err = suite.env.stakeholders.RejectRequest(suite.env.admin.ID, request.ID, &RejectRequestInput{})
	suite.Equal(CodeValidationFailed, CodeOf(err))

	rejected, err := suite.env.stakeholders.RejectRequest(suite.env.admin.ID, request.ID, &RejectRequestInput{
		Reason: "license could not be confirmed",
	})
	suite.NoError(err)
	suite.Equal(models.RequestStatusRejected, rejected.Status)
	suite.Equal("license could not be confirmed", rejected.RejectionReason)
}

func (suite *StakeholderServiceTestSuite) TestCanTransactFollowsAdjacency() {
	farmer := suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	processor := suite.env.registerStakeholder(suite.T(), models.RoleProcessor)
	retailer := suite.env.registerStakeholder(suite.T(), models.RoleRetailer)

	ok, err := suite.env.stakeholders.CanTransact(farmer.ID, processor.ID)
	suite.NoError(err)
	suite.True(ok)

	// Farmer -> retailer skips a link and is not allowed by default.
	ok, err = suite.env.stakeholders.CanTransact(farmer.ID, retailer.ID)
	suite.NoError(err)
	suite.False(ok)

	// An explicit partnership opens the pair, in one direction only.
	_, err = suite.env.stakeholders.AddPartnership(suite.env.admin.ID, &PartnershipRequest{
		SellerID: farmer.ID,
		BuyerID:  retailer.ID,
	})
	suite.NoError(err)

	ok, err = suite.env.stakeholders.CanTransact(farmer.ID, retailer.ID)
	suite.NoError(err)
	suite.True(ok)

	ok, err = suite.env.stakeholders.CanTransact(retailer.ID, farmer.ID)
	suite.NoError(err)
	suite.False(ok)
}

func (suite *StakeholderServiceTestSuite) TestConsumerRegistrationAndStatistics() {
	suite.env.registerStakeholder(suite.T(), models.RoleFarmer)
	consumer := suite.env.registerConsumer(suite.T())
	suite.Equal(models.RoleConsumer, consumer.Role)

	stats, err := suite.env.stakeholders.GetStatistics()
	suite.NoError(err)
	suite.Equal(int64(3), stats.TotalStakeholders) // admin + farmer + consumer
	suite.Equal(int64(1), stats.ByRole["farmer"])
	suite.Equal(int64(1), stats.ByRole["consumer"])
}

func TestStakeholderServiceSuite(t *testing.T) {
	suite.Run(t, new(StakeholderServiceTestSuite))
}
