package model

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is a decimal amount stored as Decimal128 and rendered as a JSON
// number with two fractional digits.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

func (m Money) Add(o Money) Money {
	return NewMoney(m.Decimal.Add(o.Decimal))
}

func (m Money) Times(qty int) Money {
	return NewMoney(m.Decimal.Mul(decimal.NewFromInt(int64(qty))))
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(m.StringFixed(2))
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if d, ok := raw.Decimal128OK(); ok {
		parsed, err := decimal.NewFromString(d.String())
		if err != nil {
			return err
		}
		m.Decimal = parsed
		return nil
	}
	if f, ok := raw.DoubleOK(); ok {
		m.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	if i, ok := raw.Int32OK(); ok {
		m.Decimal = decimal.NewFromInt(int64(i))
		return nil
	}
	if i, ok := raw.Int64OK(); ok {
		m.Decimal = decimal.NewFromInt(i)
		return nil
	}
	if t == bsontype.Null {
		m.Decimal = decimal.Zero
		return nil
	}
	return fmt.Errorf("cannot decode %s into Money", t)
}
