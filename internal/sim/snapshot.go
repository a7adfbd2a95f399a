package sim

import (
	"errors"
	"fmt"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/codec"
	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// ErrSnapshot is returned when saved state is missing a required part.
var ErrSnapshot = errors.New("sim: incomplete snapshot")

// ErrMismatch is returned by Verify when stored metadata disagrees with the
// snapshot it describes.
var ErrMismatch = errors.New("sim: snapshot does not match its record")

// State is the mutable part of a simulation. Metadata and rules come from
// the config the simulation is restored with.
type State struct {
	Day       int64                               `json:"day"`
	Seed      uint64                              `json:"seed"`
	Rng       []byte                              `json:"rng"`
	Exchange  *amm.Exchange                       `json:"exchange"`
	Routes    *amm.RouteCache                     `json:"routes"`
	Desks     map[model.Currency]*account.Account `json:"desks"`
	Factories []*economy.Factory                  `json:"factories"`
	Pops      []*economy.Pop                      `json:"pops"`
	Money     map[model.Currency]int64            `json:"money"`
}

// State captures the simulation. The returned value shares memory with s.
func (s *Simulation) State() (*State, error) {
	rng, err := s.rng.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("save rng: %w", err)
	}
	return &State{
		Day:       s.Day,
		Seed:      s.Seed,
		Rng:       rng,
		Exchange:  s.Exchange,
		Routes:    s.Routes,
		Desks:     s.Desks,
		Factories: s.Factories,
		Pops:      s.Pops,
		Money:     s.Money,
	}, nil
}

// Restore rebuilds a simulation from saved state.
func Restore(cfg *config.Config, st *State) (*Simulation, error) {
	s := newShell(cfg)
	s.Day = st.Day
	s.Seed = st.Seed
	s.rng = random.New(st.Seed)
	if err := s.rng.UnmarshalBinary(st.Rng); err != nil {
		return nil, fmt.Errorf("restore rng: %w", err)
	}
	s.Exchange = st.Exchange
	s.Routes = st.Routes
	s.Desks = st.Desks
	s.Factories = st.Factories
	s.Pops = st.Pops
	s.Money = st.Money
	if s.Exchange == nil || s.Routes == nil {
		return nil, ErrSnapshot
	}
	for _, cur := range s.currencies {
		if s.Desks[cur] == nil {
			return nil, fmt.Errorf("%w: no desk for currency %d", ErrSnapshot, cur)
		}
	}
	s.index()
	return s, nil
}

// Encode writes the simulation as a compressed snapshot.
func (s *Simulation) Encode() ([]byte, error) {
	st, err := s.State()
	if err != nil {
		return nil, err
	}
	return codec.Encode(codec.Header{Day: s.Day, Seed: s.Seed}, st)
}

// Decode restores a simulation from a snapshot written by Encode.
func Decode(cfg *config.Config, data []byte) (*Simulation, error) {
	var st State
	if _, err := codec.Decode(data, &st); err != nil {
		return nil, err
	}
	return Restore(cfg, &st)
}

// Verify checks that data is the snapshot info describes. Only the header
// is read.
func Verify(info *model.SnapshotInfo, data []byte) error {
	h, err := codec.Peek(data)
	if err != nil {
		return err
	}
	if h.Day != info.Day || h.Seed != info.Seed {
		return fmt.Errorf("%w: %s records day %d seed %d, data holds day %d seed %d",
			ErrMismatch, info.ID, info.Day, info.Seed, h.Day, h.Seed)
	}
	return nil
}
