package sim

import (
	"slices"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// Closes converts a report's closed intervals into history records, in
// canonical pair order, with the reserves left after the dividend drain.
func (s *Simulation) Closes(r Report) []model.MarketClose {
	pairs := make([]model.Pair, 0, len(r.Closes))
	for p := range r.Closes {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, model.Pair.Compare)

	out := make([]model.MarketClose, 0, len(pairs))
	for _, p := range pairs {
		iv := r.Closes[p]
		c := model.MarketClose{
			Pair:        p.String(),
			Day:         r.Day,
			Open:        iv.Open.Decimal(),
			High:        iv.High.Decimal(),
			Low:         iv.Low.Decimal(),
			Close:       iv.Close.Decimal(),
			VolumeBase:  iv.VolumeBase,
			VolumeQuote: iv.VolumeQuote,
		}
		if m, ok := s.Exchange.Markets[p]; ok {
			c.Base, c.Quote = m.Pool.Base, m.Pool.Quote
		}
		out = append(out, c)
	}
	return out
}
