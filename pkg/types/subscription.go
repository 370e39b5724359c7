package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleUint64 unmarshals a JSON number or decimal string. The indexer
// serialises uint256-typed fields as strings, so both forms show up.
type FlexibleUint64 uint64

func (f *FlexibleUint64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse uint64 %q: %w", s, err)
	}
	*f = FlexibleUint64(v)
	return nil
}

func (f FlexibleUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(f), 10))
}

// Subscription is one recurring-payment record produced by the external
// indexer from on-chain events. This service treats it as read-only: the
// indexer alone advances LastPaymentTimestamp, and only after observing the
// PaymentMade event on chain.
type Subscription struct {
	ID                   string         `json:"id"`
	Owner                string         `json:"owner"`      // payer-controlling EOA
	Subscriber           string         `json:"subscriber"` // payer smart account holding funds
	Recipient            string         `json:"recipient"`
	Token                string         `json:"token"`
	Amount               string         `json:"amount"` // smallest-unit integer, opaque here
	Frequency            FlexibleUint64 `json:"frequency"`
	LastPaymentTimestamp FlexibleUint64 `json:"lastPaymentTimestamp"`
	IsActive             bool           `json:"isActive"`
}

// DueAt reports whether the subscription's next payment time has been reached
// at the given unix timestamp. The boundary is inclusive: a subscription with
// last=1000 and frequency=100 is due at exactly now=1100.
func (s Subscription) DueAt(nowUnix uint64) bool {
	return nowUnix >= uint64(s.LastPaymentTimestamp)+uint64(s.Frequency)
}
