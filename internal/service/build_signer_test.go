package service

import (
	"testing"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildSigner_RejectsShortKey(t *testing.T) {
	_, err := NewBuildSigner([]byte("short"))
	assert.Error(t, err)
}

func TestBuildSigner_Verify(t *testing.T) {
	signer := testSigner(t)
	line := domain.OrderLine{ItemName: "Widget", Quantity: 3, Price: decimal.RequireFromString("2.50")}
	signed := signer.Sign(domain.NewOrderBuild().WithLine(line))

	require.NotEmpty(t, signed.Signature)
	assert.NoError(t, signer.Verify(signed))

	tests := []struct {
		name   string
		mutate func(b *domain.OrderBuild)
	}{
		{"price", func(b *domain.OrderBuild) { b.Lines[0].Price = decimal.RequireFromString("0.01") }},
		{"quantity", func(b *domain.OrderBuild) { b.Lines[0].Quantity = 30 }},
		{"item", func(b *domain.OrderBuild) { b.Lines[0].ItemName = "Gadget" }},
		{"extra line", func(b *domain.OrderBuild) { b.Lines = append(b.Lines, line) }},
		{"missing signature", func(b *domain.OrderBuild) { b.Signature = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := signed
			b.Lines = append([]domain.OrderLine(nil), signed.Lines...)
			tt.mutate(&b)
			assert.ErrorIs(t, signer.Verify(b), domain.ErrValidation)
		})
	}
}

func TestBuildSigner_PriceFormattingIsStable(t *testing.T) {
	signer := testSigner(t)
	signed := signer.Sign(domain.NewOrderBuild().WithLine(
		domain.OrderLine{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}))

	// A JSON round trip may render 2.50 as 2.5.
	signed.Lines[0].Price = decimal.RequireFromString("2.5")
	assert.NoError(t, signer.Verify(signed))
}

func TestBuildSigner_KeysDiffer(t *testing.T) {
	a, err := NewRandomBuildSigner()
	require.NoError(t, err)
	b, err := NewRandomBuildSigner()
	require.NoError(t, err)

	signed := a.Sign(domain.NewOrderBuild().WithLine(
		domain.OrderLine{ItemName: "Widget", Quantity: 1, Price: decimal.RequireFromString("2.50")}))

	assert.ErrorIs(t, b.Verify(signed), domain.ErrValidation)
}

func TestBuildSigner_EmptyBuildNeedsNoSignature(t *testing.T) {
	assert.NoError(t, testSigner(t).Verify(domain.NewOrderBuild()))
}
