// Package quests holds the quest catalogue and milestone table.
package quests

import (
	"errors"
	"fmt"

	"github.com/pendergraft/questhub/internal/verification/domain"
)

// Domain errors
var (
	ErrQuestNotFound     = errors.New("quest not found")
	ErrStepNotFound      = errors.New("step not found")
	ErrStepNotVerifiable = errors.New("step has no verification")
)

// Category groups quests in the catalogue.
type Category string

const (
	CategoryDeFi   Category = "DeFi"
	CategoryBridge Category = "Bridge"
	CategorySocial Category = "Social"
	CategoryNFT    Category = "NFT"
	CategoryGaming Category = "Gaming"
)

// Difficulty is a coarse effort rating.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Status controls whether a quest can be attempted.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusLocked    Status = "locked"
)

// Partner is the protocol a quest sends users to.
type Partner struct {
	Name     string `json:"name" yaml:"name"`
	Logo     string `json:"logo,omitempty" yaml:"logo,omitempty"`
	Verified bool   `json:"verified" yaml:"verified"`
	Website  string `json:"website,omitempty" yaml:"website,omitempty"`
}

// Step is one action within a quest.
type Step struct {
	Title        string         `json:"title" yaml:"title"`
	Description  string         `json:"description" yaml:"description"`
	ActionLabel  string         `json:"actionLabel,omitempty" yaml:"actionLabel,omitempty"`
	HelperText   string         `json:"helperText,omitempty" yaml:"helperText,omitempty"`
	StartURL     string         `json:"startUrl,omitempty" yaml:"startUrl,omitempty"`
	Verification *domain.Config `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// Quest is a catalogue entry.
type Quest struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description" yaml:"description"`
	XP           int64      `json:"xp" yaml:"xp"`
	Category     Category   `json:"category" yaml:"category"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	TimeEstimate string     `json:"timeEstimate" yaml:"timeEstimate"`
	Network      string     `json:"network" yaml:"network"`
	Partner      Partner    `json:"partner" yaml:"partner"`
	Steps        []Step     `json:"steps" yaml:"steps"`
	Status       Status     `json:"status" yaml:"status"`
	ExternalURL  string     `json:"externalUrl,omitempty" yaml:"externalUrl,omitempty"`
	BrandColor   string     `json:"brandColor,omitempty" yaml:"brandColor,omitempty"`
	Hidden       bool       `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	// Verification applies to the quest as a whole. Entries are tried in order.
	Verification []domain.Config `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// HasTopLevelVerification reports whether the quest itself carries a config.
func (q Quest) HasTopLevelVerification() bool {
	return len(q.Verification) > 0
}

// HasOnchainVerification reports whether any top-level config is checked on chain.
func (q Quest) HasOnchainVerification() bool {
	return len(q.OnchainConfigs()) > 0
}

// OnchainConfigs returns the top-level configs checked on chain.
func (q Quest) OnchainConfigs() []domain.Config {
	var out []domain.Config
	for _, c := range q.Verification {
		if c.IsOnchain() {
			out = append(out, c)
		}
	}
	return out
}

// VerifiableSteps returns the indices of steps that carry a verification config.
func (q Quest) VerifiableSteps() []int {
	var out []int
	for i, s := range q.Steps {
		if s.Verification != nil {
			out = append(out, i)
		}
	}
	return out
}

// IsMultiStep reports whether completion is derived from step completions.
func (q Quest) IsMultiStep() bool {
	return !q.HasTopLevelVerification() && len(q.VerifiableSteps()) > 0
}

// StepXP is the share of the quest XP paid for one step, rounded down.
func (q Quest) StepXP() int64 {
	if len(q.Steps) == 0 {
		return 0
	}
	return q.XP / int64(len(q.Steps))
}

// Step returns the step at idx.
func (q Quest) Step(idx int) (Step, error) {
	if idx < 0 || idx >= len(q.Steps) {
		return Step{}, fmt.Errorf("%w: quest %s has no step %d", ErrStepNotFound, q.ID, idx)
	}
	return q.Steps[idx], nil
}

// StepLabel names a step in logs.
func StepLabel(questID string, idx int) string {
	return fmt.Sprintf("quest %s step %d", questID, idx)
}

// Filter narrows List results.
type Filter struct {
	Category      Category
	Status        Status
	IncludeHidden bool
}

// Rarity of a milestone badge.
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
	RarityMythic    Rarity = "Mythic"
)

// Milestone is an XP threshold that unlocks a badge.
type Milestone struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	XPRequired  int64    `json:"xpRequired" yaml:"xpRequired"`
	Image       string   `json:"nftImage,omitempty" yaml:"nftImage,omitempty"`
	Rarity      Rarity   `json:"rarity" yaml:"rarity"`
	Benefits    []string `json:"benefits,omitempty" yaml:"benefits,omitempty"`
}

// Progress is a user's position on the milestone ladder.
type Progress struct {
	Achieved []Milestone `json:"achieved"`
	Next     *Milestone  `json:"next,omitempty"`
	// Percent is the progress from the last achieved threshold to Next.
	Percent float64 `json:"progress"`
}
