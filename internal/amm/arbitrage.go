package amm

import (
	"math"
	"sort"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

var (
	// ProfitThreshold is the spot-price loop product a route must beat
	// before market depth is worth spending, unless Settings.Threshold
	// overrides it.
	ProfitThreshold = 1.001

	// Overshoot corrects the linear estimate of the optimal input, which
	// overshoots on the convex constant-product curve.
	Overshoot = 0.99
)

// Opportunity is a priced home→resource→partner→home loop. It is only
// valid against the pool state it was evaluated on.
type Opportunity struct {
	Home     model.Asset `json:"home"`
	Resource model.Asset `json:"resource"`
	Partner  model.Asset `json:"partner"`
	Volume   int64       `json:"volume"`
	Profit   int64       `json:"profit"`

	legs [3]View
	flow [4]int64
}

func (e *Exchange) loop(home, resource, partner model.Asset) ([3]View, bool) {
	var legs [3]View
	var ok bool
	if legs[0], ok = e.Lookup(home, resource); !ok {
		return legs, false
	}
	if legs[1], ok = e.Lookup(resource, partner); !ok {
		return legs, false
	}
	if legs[2], ok = e.Lookup(partner, home); !ok {
		return legs, false
	}
	return legs, true
}

// simulate runs the three legs with exact integer quoting. flow[i] is the
// amount entering leg i; flow[3] is what returns home. fits is false only
// when a leg cannot take the whole amount exported to it; a dust input that
// rounds to nothing still fits and simply carries zero onward.
func simulate(legs [3]View, x int64) (flow [4]int64, fits bool) {
	flow[0] = x
	for i, leg := range legs {
		if flow[i] > leg.Capacity() {
			return flow, false
		}
		_, flow[i+1] = leg.Quote(flow[i])
	}
	return flow, true
}

// fit returns the largest input not above x whose forward simulation fits
// every leg, with its flows. Every leg's output is nondecreasing in its
// input, so fitting is monotone and a binary search finds the boundary.
func fit(legs [3]View, x int64) (int64, [4]int64) {
	if flow, ok := simulate(legs, x); ok {
		return x, flow
	}
	lo, hi := int64(0), x-1
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if _, ok := simulate(legs, mid); ok {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	flow, _ := simulate(legs, lo)
	return lo, flow
}

// Evaluate prices the loop home→resource→partner→home for at most capital
// units of home. It returns nil unless the realized profit is positive.
func (e *Exchange) Evaluate(home, resource, partner model.Asset, capital int64) *Opportunity {
	if capital <= 0 {
		return nil
	}
	legs, ok := e.loop(home, resource, partner)
	if !ok {
		return nil
	}

	var product, depth float64 = 1, 0
	var shallowest int64 = math.MaxInt64
	for _, leg := range legs {
		in, out := leg.Reserves()
		depth += product / float64(in)
		product *= float64(out) / float64(in)
		shallowest = min(shallowest, in)
	}
	threshold := ProfitThreshold
	if e.Settings.Threshold > 0 {
		threshold = e.Settings.Threshold
	}
	if product <= threshold {
		return nil
	}

	estimate := Overshoot * (product - 1) / (2 * product * depth)
	x := int64(math.Min(estimate, float64(math.MaxInt64/2)))
	x = min(x, capital, shallowest)
	if x <= 0 {
		return nil
	}

	// A later leg may be the bottleneck: shrink the input until every leg
	// converts exactly what the previous one exports.
	x, flow := fit(legs, x)
	if x <= 0 {
		return nil
	}

	profit := flow[3] - flow[0]
	if profit <= 0 {
		return nil
	}
	return &Opportunity{
		Home:     home,
		Resource: resource,
		Partner:  partner,
		Volume:   x,
		Profit:   profit,
		legs:     legs,
		flow:     flow,
	}
}

// Execute performs the three swaps of an opportunity evaluated against the
// current pool state and returns the home amount spent and received.
func (e *Exchange) Execute(o *Opportunity) (spent, returned int64) {
	amount := o.flow[0]
	for i, leg := range o.legs {
		cost, received := leg.Sell(amount)
		invariant.Check(cost == amount, "arbitrage leg %d consumed %d of %d", i, cost, amount)
		invariant.Check(received == o.flow[i+1], "arbitrage leg %d returned %d, priced %d", i, received, o.flow[i+1])
		amount = received
	}
	return o.flow[0], amount
}

// Route is a cached profitable loop for one home currency.
type Route struct {
	Resource model.Asset `json:"resource"`
	Partner  model.Asset `json:"partner"`
	Profit   int64       `json:"profit"`
	Seq      int64       `json:"seq"`
}

// RouteCache keeps a bounded set of previously profitable routes per home
// currency. Routes are held in insertion order.
type RouteCache struct {
	Capacity int                     `json:"capacity"`
	Routes   map[model.Asset][]Route `json:"routes"`
	Next     int64                   `json:"next"`
}

// NewRouteCache creates a cache keeping at most capacity routes per home.
func NewRouteCache(capacity int) *RouteCache {
	return &RouteCache{Capacity: capacity, Routes: make(map[model.Asset][]Route)}
}

func (c *RouteCache) contains(home model.Asset, r Route) bool {
	for _, cached := range c.Routes[home] {
		if cached.Resource == r.Resource && cached.Partner == r.Partner {
			return true
		}
	}
	return false
}

func (c *RouteCache) add(home model.Asset, r Route) {
	r.Seq = c.Next
	c.Next++
	c.Routes[home] = append(c.Routes[home], r)
}

// evict drops non-positive routes and, over capacity, keeps the most
// profitable. Equal profits keep the earlier-inserted route, so exactly the
// overflow count is removed.
func (c *RouteCache) evict(home model.Asset) {
	routes := c.Routes[home][:0]
	for _, r := range c.Routes[home] {
		if r.Profit > 0 {
			routes = append(routes, r)
		}
	}
	if c.Capacity >= 0 && len(routes) > c.Capacity {
		sort.SliceStable(routes, func(i, j int) bool { return routes[i].Profit > routes[j].Profit })
		routes = routes[:c.Capacity]
		sort.Slice(routes, func(i, j int) bool { return routes[i].Seq < routes[j].Seq })
	}
	if len(routes) == 0 {
		delete(c.Routes, home)
		return
	}
	c.Routes[home] = routes
}

// Arbitrage runs one turn of triangular arbitrage for home with the given
// capital: it re-prices cached routes, scans the candidate resources and
// partners for new ones, then executes the surviving routes, most
// profitable first, each against the pool state left by the previous one.
func (e *Exchange) Arbitrage(home model.Asset, capital int64, cache *RouteCache, resources, partners []model.Asset) []Opportunity {
	reprice := func(r *Route) {
		r.Profit = 0
		if o := e.Evaluate(home, r.Resource, r.Partner, capital); o != nil {
			r.Profit = o.Profit
		}
	}

	cached := cache.Routes[home]
	for i := range cached {
		reprice(&cached[i])
	}
	cache.evict(home)

	for _, resource := range resources {
		for _, partner := range partners {
			if partner == home {
				continue
			}
			r := Route{Resource: resource, Partner: partner}
			if cache.contains(home, r) {
				continue
			}
			if reprice(&r); r.Profit > 0 {
				cache.add(home, r)
			}
		}
	}
	cache.evict(home)

	order := append([]Route(nil), cache.Routes[home]...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Profit > order[j].Profit })

	var executed []Opportunity
	for _, r := range order {
		o := e.Evaluate(home, r.Resource, r.Partner, capital)
		if o == nil {
			continue
		}
		spent, returned := e.Execute(o)
		capital += returned - spent
		executed = append(executed, *o)
	}
	return executed
}

// Yield is profit per unit of volume.
func (o Opportunity) Yield() exact.Fraction {
	if o.Volume == 0 {
		return exact.Zero
	}
	return exact.New(o.Profit, o.Volume)
}
