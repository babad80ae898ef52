package transactions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyMarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(struct {
		Price Money `json:"priceGBP"`
	}{MustMoney("150.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"priceGBP":150.50}`, string(out))
	assert.Contains(t, string(out), "150.50")
}

func TestMoneyUnmarshal(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`150.50`), &m))
	assert.Equal(t, "150.50", m.String())

	require.NoError(t, json.Unmarshal([]byte(`1.5e3`), &m))
	assert.Equal(t, "1500.00", m.String())

	assert.Error(t, json.Unmarshal([]byte(`"42.1"`), &m), "quoted amounts are not numbers")
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`true`), &m))
}

func TestMoneyRejectsExtremeExponentsQuickly(t *testing.T) {
	for _, raw := range []string{`1e100000000`, `1e-100000000`, `5E+2000`} {
		done := make(chan error, 1)
		go func() {
			var m Money
			done <- json.Unmarshal([]byte(raw), &m)
		}()
		select {
		case err := <-done:
			assert.Error(t, err, raw)
		case <-time.After(2 * time.Second):
			t.Fatalf("decoding %s did not return", raw)
		}
	}

	// Values built without parsing are bounded by Validate before any rounding.
	for _, m := range []Money{
		{Decimal: decimal.New(1, 100000000)},
		{Decimal: decimal.New(1, -100000000)},
	} {
		done := make(chan string, 1)
		go func() { done <- m.Validate() }()
		select {
		case msg := <-done:
			assert.Equal(t, "is out of range", msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("Validate did not return for exponent %d", m.Exponent())
		}
	}
}
