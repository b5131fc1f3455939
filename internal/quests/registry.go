package quests

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/questhub/internal/chains/evm"
	"github.com/pendergraft/questhub/internal/validation"
	"github.com/pendergraft/questhub/internal/verification/domain"
)

//go:embed quests.yaml
var catalogue []byte

// document is the on-disk catalogue layout.
type document struct {
	Milestones []Milestone `yaml:"milestones"`
	Quests     []Quest     `yaml:"quests"`
}

// Registry is the read-only quest catalogue.
type Registry struct {
	quests     []Quest
	byID       map[string]int
	milestones []Milestone
}

// Load parses the built-in catalogue.
func Load() (*Registry, error) {
	return Parse(catalogue)
}

// LoadFile parses a catalogue from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading quest catalogue: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalogue. Unknown fields are rejected.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing quest catalogue: %w", err)
	}
	return New(doc.Quests, doc.Milestones)
}

// New builds a registry from already decoded quests and milestones.
func New(quests []Quest, milestones []Milestone) (*Registry, error) {
	r := &Registry{
		quests:     quests,
		byID:       make(map[string]int, len(quests)),
		milestones: slices.Clone(milestones),
	}
	for i, q := range quests {
		if err := validateQuest(q); err != nil {
			return nil, fmt.Errorf("quest %q: %w", q.ID, err)
		}
		if _, dup := r.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", q.ID)
		}
		r.byID[q.ID] = i
	}

	slices.SortStableFunc(r.milestones, func(a, b Milestone) int {
		return int(a.XPRequired - b.XPRequired)
	})
	for i := 1; i < len(r.milestones); i++ {
		if r.milestones[i].XPRequired == r.milestones[i-1].XPRequired {
			return nil, fmt.Errorf("milestones %q and %q share a threshold", r.milestones[i-1].ID, r.milestones[i].ID)
		}
	}
	return r, nil
}

func validateQuest(q Quest) error {
	if err := validation.ValidateQuestID(q.ID); err != nil {
		return err
	}
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if q.XP < 0 {
		return fmt.Errorf("xp cannot be negative")
	}
	switch q.Status {
	case StatusActive, StatusCompleted, StatusLocked:
	default:
		return fmt.Errorf("unknown status %q", q.Status)
	}
	for i, c := range q.Verification {
		if err := validateType(c); err != nil {
			return fmt.Errorf("verification %d: %w", i, err)
		}
	}
	for i, s := range q.Steps {
		if s.Verification == nil {
			continue
		}
		if err := validateType(*s.Verification); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func validateType(c domain.Config) error {
	switch c.Type {
	case domain.TypeOnchain, domain.TypeManual, domain.TypeAPI, "":
		return nil
	default:
		return fmt.Errorf("unknown verification type %q", c.Type)
	}
}

// Get returns the quest with the given id.
func (r *Registry) Get(id string) (Quest, error) {
	i, ok := r.byID[id]
	if !ok {
		return Quest{}, fmt.Errorf("%w: %s", ErrQuestNotFound, id)
	}
	return r.quests[i], nil
}

// List returns quests in catalogue order.
func (r *Registry) List(f Filter) []Quest {
	out := make([]Quest, 0, len(r.quests))
	for _, q := range r.quests {
		if q.Hidden && !f.IncludeHidden {
			continue
		}
		if f.Category != "" && !strings.EqualFold(string(q.Category), string(f.Category)) {
			continue
		}
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		out = append(out, q)
	}
	return out
}

// All returns every quest, hidden ones included.
func (r *Registry) All() []Quest {
	return slices.Clone(r.quests)
}

// Milestones returns the milestone table ordered by threshold.
func (r *Registry) Milestones() []Milestone {
	return slices.Clone(r.milestones)
}

// MilestoneProgress places xp on the milestone ladder.
func (r *Registry) MilestoneProgress(xp int64) Progress {
	p := Progress{Achieved: []Milestone{}}
	for i := range r.milestones {
		m := r.milestones[i]
		if xp >= m.XPRequired {
			p.Achieved = append(p.Achieved, m)
			continue
		}
		if p.Next == nil {
			p.Next = &m
		}
	}
	if p.Next == nil {
		p.Percent = 100
		return p
	}

	var prev int64
	if n := len(p.Achieved); n > 0 {
		prev = p.Achieved[n-1].XPRequired
	}
	p.Percent = float64(xp-prev) / float64(p.Next.XPRequired-prev) * 100
	return p
}

// ConfigReport is the static analysis of one verification config.
type ConfigReport struct {
	QuestID string
	// Step is -1 for a quest level config.
	Step      int
	ChainID   int64
	EventName string
	// Topic0 is the selector the engine will filter on.
	Topic0   string
	Problems []string
}

// OK reports whether no problems were found.
func (c ConfigReport) OK() bool {
	return len(c.Problems) == 0
}

// Check inspects every on-chain config in the catalogue without touching the network.
func (r *Registry) Check() []ConfigReport {
	var reports []ConfigReport
	for _, q := range r.quests {
		for _, c := range q.Verification {
			if c.IsOnchain() {
				reports = append(reports, checkConfig(q.ID, -1, c))
			}
		}
		for i, s := range q.Steps {
			if s.Verification != nil && s.Verification.IsOnchain() {
				reports = append(reports, checkConfig(q.ID, i, *s.Verification))
			}
		}
	}
	return reports
}

func checkConfig(questID string, step int, c domain.Config) ConfigReport {
	rep := ConfigReport{QuestID: questID, Step: step, ChainID: c.ChainID, EventName: c.EventName}

	if c.EventName == "" && c.EventSignatureHash == "" {
		rep.Problems = append(rep.Problems, "missing event name")
	}
	if evm.IsPlaceholder(c.ContractAddress) {
		rep.Problems = append(rep.Problems, "placeholder contract address")
	} else if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		rep.Problems = append(rep.Problems, fmt.Sprintf("invalid contract address %q", c.ContractAddress))
	}
	for _, addr := range c.Contracts {
		if !common.IsHexAddress(addr) {
			rep.Problems = append(rep.Problems, fmt.Sprintf("invalid contract address %q", addr))
		}
	}

	if c.EventABI != nil {
		sel, err := c.EventABI.Selector()
		if err != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("event abi: %v", err))
		} else {
			rep.Topic0 = sel.Hex()
		}
		if _, ok := c.EventABI.Param(c.FilterArg()); !ok {
			rep.Problems = append(rep.Problems, fmt.Sprintf("argument %q not in event abi", c.FilterArg()))
		}
	}
	if c.EventSignatureHash != "" {
		rep.Topic0 = strings.ToLower(c.EventSignatureHash)
	}
	if rep.Topic0 == "" {
		rep.Problems = append(rep.Problems, "no event abi or signature hash")
	}
	return rep
}
