package backtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

func TestSMACrossover_Signal(t *testing.T) {
	s := SMACrossover{Short: 2, Long: 4}
	assert.Equal(t, models.Flat, s.Signal(barsFrom(1, 2, 3)), "flat before the long window exists")
	assert.Equal(t, models.Long, s.Signal(barsFrom(1, 2, 3, 4)))
	assert.Equal(t, models.Flat, s.Signal(barsFrom(4, 3, 2, 1)))
	assert.Equal(t, "sma_2_4", s.Name())
}

func TestByName(t *testing.T) {
	s, err := ByName("sma", 20, 50)
	require.NoError(t, err)
	assert.Equal(t, SMACrossover{Short: 20, Long: 50}, s)

	s, err = ByName("buy_hold", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "buy_hold", s.Name())

	_, err = ByName("momentum", 1, 2)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	_, err = ByName("sma", 50, 20)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
}
