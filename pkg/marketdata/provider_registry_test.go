package marketdata

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestSupportedProviders() {
	suite.Equal([]string{"binance", "polygon"}, SupportedProviders())
}

func (suite *ProviderRegistryTestSuite) TestLookupBinance() {
	info, err := LookupProvider("binance")
	suite.NoError(err)
	suite.Equal("binance", info.Name)
	suite.Equal("Binance", info.DisplayName)
	suite.NotEmpty(info.Description)
	suite.False(info.RequiresAuth)
}

func (suite *ProviderRegistryTestSuite) TestLookupPolygon() {
	info, err := LookupProvider("polygon")
	suite.NoError(err)
	suite.Equal("polygon", info.Name)
	suite.True(info.RequiresAuth)
}

func (suite *ProviderRegistryTestSuite) TestLookupUnknownProvider() {
	_, err := LookupProvider("bloomberg")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
	suite.Contains(err.Error(), "bloomberg")
}
