package types

import "encoding/json"

// entropyAnomalyWire mirrors EntropyAnomaly but carries both spellings of
// the "from" field so old serializations round-trip (spec §6).
type entropyAnomalyWire struct {
	Index     int      `json:"index"`
	From      *float64 `json:"from,omitempty"`
	FromValue *float64 `json:"from_value,omitempty"`
	To        float64  `json:"to"`
	Delta     float64  `json:"delta"`
}

func (a EntropyAnomaly) MarshalJSON() ([]byte, error) {
	return json.Marshal(entropyAnomalyWire{
		Index: a.Index,
		From:  &a.From,
		To:    a.To,
		Delta: a.Delta,
	})
}

func (a *EntropyAnomaly) UnmarshalJSON(data []byte) error {
	var w entropyAnomalyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Index = w.Index
	a.To = w.To
	a.Delta = w.Delta
	switch {
	case w.From != nil:
		a.From = *w.From
	case w.FromValue != nil:
		a.From = *w.FromValue
	}
	return nil
}
