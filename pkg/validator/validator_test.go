package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "@foo_bar", NormalizeHandle("  @Foo_Bar "))
	assert.Equal(t, "@foo", NormalizeHandle("Foo"))
	assert.Equal(t, "", NormalizeHandle("   "))

	once := NormalizeHandle("@LazyLegend")
	assert.Equal(t, once, NormalizeHandle(once), "normalisation must be idempotent")
}

func TestIsValidHandle(t *testing.T) {
	assert.True(t, IsValidHandle("@a"))
	assert.True(t, IsValidHandle("@abcdefghij_1234"[:16]))
	assert.False(t, IsValidHandle("@"))
	assert.False(t, IsValidHandle("foo"))
	assert.False(t, IsValidHandle("@this_is_too_long_x"))
	assert.False(t, IsValidHandle("@bad-char"))
}

func TestWallets(t *testing.T) {
	assert.True(t, IsValidWallet("0.0.12345"))
	assert.False(t, IsValidWallet("0.0."))
	assert.False(t, IsValidWallet("1.0.5"))
	assert.Equal(t, WalletUnset, NormalizeWallet(""))
	assert.Equal(t, WalletUnset, NormalizeWallet("UNSET"))
	assert.Equal(t, "0.0.7", NormalizeWallet(" 0.0.7 "))

	assert.True(t, HasWallet("0.0.7"))
	assert.False(t, HasWallet(WalletUnset))
	assert.False(t, HasWallet(""))
}

func TestCustomTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	type input struct {
		Handle string `validate:"required,xhandle"`
		Wallet string `validate:"hederawallet"`
	}

	assert.NoError(t, v.Struct(input{Handle: "Legend", Wallet: ""}))
	assert.NoError(t, v.Struct(input{Handle: "@legend", Wallet: "0.0.99"}))

	err := v.Struct(input{Handle: "@not valid", Wallet: "0x1234"})
	require.Error(t, err)
	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Handle must be an X handle")
	assert.Contains(t, msg, "Wallet must be a Hedera account id")
}
