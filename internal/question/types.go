package question

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

var (
	// ErrMalformedPayload is shared with the transport so callers match one sentinel.
	ErrMalformedPayload = wordpress.ErrMalformedPayload
	// ErrNoQuestions means the payload parsed but no item survived normalization.
	ErrNoQuestions = fmt.Errorf("%w: no supported questions", ErrMalformedPayload)
	// ErrInvalidRules rejects rules with required fields left unset.
	ErrInvalidRules = errors.New("invalid question rules")
)

// Choice is one selectable answer. Key is the value recorded, Label is shown to the user.
type Choice struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Question is the normalized shape every test type is reduced to.
type Question struct {
	ID       string   `json:"id"`
	SourceID string   `json:"source_id"`
	Prompt   string   `json:"prompt"`
	Choices  []Choice `json:"choices"`
	Group    string   `json:"group,omitempty"`
}

// NoChoicesPolicy decides what happens to items that arrive without choices.
type NoChoicesPolicy int

const (
	// NoChoicesUnset is the zero value and is always rejected.
	NoChoicesUnset NoChoicesPolicy = iota
	// NoChoicesBinary synthesizes the rules' binary choices.
	NoChoicesBinary
	// NoChoicesSkip drops the item.
	NoChoicesSkip
)

func (p NoChoicesPolicy) String() string {
	switch p {
	case NoChoicesBinary:
		return "binary"
	case NoChoicesSkip:
		return "skip"
	default:
		return "unset"
	}
}

// Skip reasons reported for items left out of a set.
const (
	SkipUnsupportedType  = "unsupported_type"
	SkipMissingID        = "missing_id"
	SkipMissingPrompt    = "missing_prompt"
	SkipMalformedItem    = "malformed_item"
	SkipMalformedChoices = "malformed_choices"
	SkipNoChoices        = "no_choices"
	SkipDuplicateID      = "duplicate_id"
)

// DefaultLevelLabel renders numeric scale levels.
const DefaultLevelLabel = "Mức độ %s"

// DefaultBinaryChoices are synthesized for choice-less items under NoChoicesBinary.
var DefaultBinaryChoices = []Choice{
	{Key: "agree", Label: "Đồng ý"},
	{Key: "disagree", Label: "Không đồng ý"},
}

// Rules parameterize normalization per test type.
type Rules struct {
	NoChoices        NoChoicesPolicy
	BinaryChoices    []Choice
	LevelLabel       string
	UnsupportedTypes []string
}

// Validate rejects rules with an unset no-choices policy.
func (r Rules) Validate() error {
	switch r.NoChoices {
	case NoChoicesBinary, NoChoicesSkip:
		return nil
	default:
		return fmt.Errorf("%w: no-choices policy must be set", ErrInvalidRules)
	}
}

func (r Rules) levelLabel() string {
	if r.LevelLabel == "" {
		return DefaultLevelLabel
	}
	return r.LevelLabel
}

func (r Rules) binaryChoices() []Choice {
	src := r.BinaryChoices
	if len(src) == 0 {
		src = DefaultBinaryChoices
	}
	out := make([]Choice, len(src))
	copy(out, src)
	return out
}

func (r Rules) unsupported(itemType string) bool {
	types := r.UnsupportedTypes
	if types == nil {
		types = []string{"complex"}
	}
	for _, t := range types {
		if t == itemType {
			return true
		}
	}
	return false
}

// Skip describes one raw item left out of the set.
type Skip struct {
	Index  int
	Group  string
	ID     string
	Reason string
}

// Set is the outcome of normalizing one payload.
type Set struct {
	Questions []Question
	Skipped   []Skip
	Grouped   bool
}
