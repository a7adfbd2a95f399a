package economy

import (
	"fmt"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/budget"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// Need tiers in order of priority.
const (
	Life = iota
	Everyday
	Luxury
	tiers
)

// tierWeights weigh each tier's satisfaction in sentiment, in permille.
var tierWeights = [tiers]int64{500, 300, 200}

// Pop is a population cohort of one type at one location.
type Pop struct {
	ID        model.ID        `json:"id"`
	Type      string          `json:"type"`
	Location  model.Location  `json:"location"`
	Size      int64           `json:"size"`
	Employed  int64           `json:"employed"`
	Account   account.Account `json:"account"`
	Stockpile Stockpile       `json:"stockpile"`

	// Satisfaction is the share of each tier's needs met today, and
	// Sentiment its slow-moving average; both in permille.
	Satisfaction [tiers]int64 `json:"satisfaction"`
	Sentiment    int64        `json:"sentiment"`

	Budget [tiers]Tier `json:"-"`

	kind      *PopType
	authority Authority
	active    bool
	needs     [tiers][]need
}

// NewPop creates a pop of a known type.
func NewPop(meta Metadata, id model.ID, typ string, loc model.Location, size int64) (*Pop, error) {
	if _, ok := meta.Pop(typ); !ok {
		return nil, fmt.Errorf("%w: pop %q", ErrUnknownType, typ)
	}
	return &Pop{ID: id, Type: typ, Location: loc, Size: size, Sentiment: 500}, nil
}

// Active reports whether the last Compute resolved an authority.
func (p *Pop) Active() bool { return p.active }

// Currency is the currency of the governing authority.
func (p *Pop) Currency() model.Currency { return p.authority.Currency }

// Job is the kind of work the pop seeks.
func (p *Pop) Job() labor.Job {
	if p.kind == nil {
		return labor.Worker
	}
	return p.kind.Job
}

// Unemployed is the part of the pop without work.
func (p *Pop) Unemployed() int64 {
	return max(0, p.Size-p.Employed)
}

func (p *Pop) tier(i int) []Input {
	switch i {
	case Life:
		return p.kind.Life
	case Everyday:
		return p.kind.Everyday
	}
	return p.kind.Luxury
}

// Compute resolves the pop's authority and type and zeroes today's deltas.
func (p *Pop) Compute(ctx Context) {
	p.active = false
	p.Budget = [tiers]Tier{}
	p.needs = [tiers][]need{}
	p.Stockpile.Turn()

	kind, ok := ctx.Metadata.Pop(p.Type)
	if !ok {
		return
	}
	authority, ok := ctx.Authorities.Resolve(p.Location)
	if !ok {
		return
	}
	p.kind = kind
	p.authority = authority
	p.active = true
}

// Allocate budgets the pop's cash across its needs, life needs first.
func (p *Pop) Allocate(w *World) {
	if !p.active {
		return
	}
	funds := p.Account.Balance()
	for i := range tiers {
		p.needs[i] = w.needs(p.Location, p.Currency(), p.tier(i), p.Size, 1, p.Stockpile)
		t := tier(p.needs[i])
		grants := budget.Distribute(funds, []int64{t.Tradeable, t.Inelastic})
		if grants == nil {
			continue
		}
		p.Budget[i] = Tier{Tradeable: grants[0], Inelastic: grants[1]}
		funds -= grants[0] + grants[1]
	}
}

// Transact buys and consumes goods and looks for work.
func (p *Pop) Transact(w *World) {
	if !p.active {
		return
	}
	cur := p.Currency()
	for i := range tiers {
		w.buy(&p.Account, p.Location, cur, p.Budget[i], p.needs[i], &p.Stockpile)
		p.Satisfaction[i] = p.consume(p.tier(i))
	}
	w.Labor.Register(labor.Key{Job: p.Job(), Location: p.Location}, p.ID, p.Unemployed())
}

// consume uses up a day of a tier's needs and returns the share met.
func (p *Pop) consume(inputs []Input) int64 {
	var wanted, met int64
	for _, in := range inputs {
		want := in.Amount.ScaleCeil(p.Size)
		if want <= 0 {
			continue
		}
		used := min(want, p.Stockpile.Units(in.Resource))
		if used > 0 {
			p.Stockpile.Get(in.Resource).Remove(used)
		}
		wanted += want
		met += used
	}
	if wanted == 0 {
		return 1000
	}
	return met * 1000 / wanted
}

// Advance pays unemployment support and drifts sentiment toward today's
// satisfaction.
func (p *Pop) Advance(w *World) {
	if !p.active {
		return
	}
	if benefit := p.Unemployed() * p.authority.Unemployment; benefit > 0 {
		p.Account.Credit(account.Subsidies, benefit)
		w.Inject(p.Currency(), benefit)
	}

	var target int64
	for i, s := range p.Satisfaction {
		target += s * tierWeights[i]
	}
	target /= 1000
	if rate := w.Settings.SentimentRate; rate > 0 {
		p.Sentiment += (target - p.Sentiment) / rate
	}
}
