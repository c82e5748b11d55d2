package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic depletion lines using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// TestDepletion is one generated distributor sales line.
type TestDepletion struct {
	Date    time.Time
	Account string
	Product string
	Cases   int
	Price   *Money
	Rep     string
	OrderID string
}

var wineStyles = []string{"Cabernet Sauvignon", "Merlot", "Pinot Noir", "Chardonnay", "Sauvignon Blanc", "Rose", "Malbec"}

// Depletion generates a single line.
func (g *TestDataGenerator) Depletion(currency string) TestDepletion {
	cases := g.faker.IntRange(1, 120)
	return TestDepletion{
		Date:    g.faker.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		Account: g.faker.Company(),
		Product: g.faker.RandomString(wineStyles) + " " + g.faker.DigitN(3),
		Cases:   cases,
		Price:   g.RandomAmountRange(currency, 8, 60).multiply(int64(cases)),
		Rep:     g.faker.Name(),
		OrderID: "SO-" + g.faker.DigitN(6),
	}
}

// Depletions generates count lines.
func (g *TestDataGenerator) Depletions(currency string, count int) []TestDepletion {
	out := make([]TestDepletion, count)
	for i := range out {
		out[i] = g.Depletion(currency)
	}
	return out
}

// RandomAmountRange generates a random Money value within a major-unit range.
func (g *TestDataGenerator) RandomAmountRange(currency string, minAmount, maxAmount float64) *Money {
	amount := decimal.NewFromFloat(g.faker.Float64Range(minAmount, maxAmount))
	return NewFromDecimal(amount, currency)
}

func (m *Money) multiply(factor int64) *Money {
	if m == nil || m.m == nil {
		return m
	}
	return &Money{m: m.m.Multiply(factor)}
}
