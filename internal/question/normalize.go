package question

import (
	"encoding/json"
	"errors"
	"fmt"
)

const maxEnvelopeDepth = 2

var errAbsent = errors.New("absent choices")

// Normalize converts a raw payload into a uniform question set. Single bad items are
// skipped and reported in Set.Skipped; only an unusable payload returns an error.
func Normalize(raw json.RawMessage, rules Rules) (Set, error) {
	if err := rules.Validate(); err != nil {
		return Set{}, err
	}
	groups, grouped, err := splitPayload(raw, 0)
	if err != nil {
		return Set{}, err
	}

	set := Set{Grouped: grouped}
	seen := make(map[string]struct{})
	index := 0
	for _, g := range groups {
		for _, item := range g.items {
			q, reason := normalizeItem(item, g.name, grouped, rules)
			if reason == "" {
				if _, dup := seen[q.ID]; dup {
					reason = SkipDuplicateID
				}
			}
			if reason != "" {
				set.Skipped = append(set.Skipped, Skip{Index: index, Group: g.name, ID: q.SourceID, Reason: reason})
			} else {
				seen[q.ID] = struct{}{}
				set.Questions = append(set.Questions, q)
			}
			index++
		}
	}
	if len(set.Questions) == 0 {
		return set, ErrNoQuestions
	}
	return set, nil
}

type itemGroup struct {
	name  string
	items []json.RawMessage
}

// splitPayload detects flat lists, WordPress envelopes and group -> list objects.
func splitPayload(raw []byte, depth int) ([]itemGroup, bool, error) {
	switch kind(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return []itemGroup{{items: items}}, false, nil
	case '{':
		members, err := decodeObject(raw)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if depth < maxEnvelopeDepth {
			for _, m := range members {
				if m.Key == "data" || m.Key == "questions" {
					return splitPayload(m.Value, depth+1)
				}
			}
		}
		groups := make([]itemGroup, 0, len(members))
		for _, m := range members {
			if kind(m.Value) != '[' {
				return nil, false, fmt.Errorf("%w: group %q is not a list", ErrMalformedPayload, m.Key)
			}
			var items []json.RawMessage
			if err := json.Unmarshal(m.Value, &items); err != nil {
				return nil, false, fmt.Errorf("%w: group %q: %v", ErrMalformedPayload, m.Key, err)
			}
			groups = append(groups, itemGroup{name: m.Key, items: items})
		}
		return groups, true, nil
	default:
		return nil, false, fmt.Errorf("%w: expected list or object", ErrMalformedPayload)
	}
}

// normalizeItem returns the question or a non-empty skip reason.
func normalizeItem(raw json.RawMessage, groupKey string, grouped bool, rules Rules) (Question, string) {
	if kind(raw) != '{' {
		return Question{}, SkipMalformedItem
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Question{}, SkipMalformedItem
	}

	q := Question{}
	if v, ok := obj["id"]; ok {
		q.SourceID, _ = scalarString(v)
	}
	q.ID = q.SourceID
	if grouped {
		q.ID = groupKey + ":" + q.SourceID
	}

	if rules.unsupported(firstString(obj, "type")) {
		return q, SkipUnsupportedType
	}
	if q.SourceID == "" {
		return q, SkipMissingID
	}
	q.Prompt = firstString(obj, "question", "text")
	if q.Prompt == "" {
		return q, SkipMissingPrompt
	}
	q.Group = firstString(obj, "group", "category")
	if q.Group == "" {
		q.Group = groupKey
	}

	rawChoices, ok := obj["options"]
	if !ok {
		rawChoices = obj["choices"]
	}
	choices, err := normalizeChoices(rawChoices, rules)
	switch {
	case errors.Is(err, errAbsent):
		if rules.NoChoices != NoChoicesBinary {
			return q, SkipNoChoices
		}
		choices = rules.binaryChoices()
	case err != nil:
		return q, SkipMalformedChoices
	}
	q.Choices = choices
	return q, ""
}

// normalizeChoices handles keyed objects, numeric scales, pair lists and string lists.
func normalizeChoices(raw json.RawMessage, rules Rules) ([]Choice, error) {
	switch kind(raw) {
	case 0, 'n':
		return nil, errAbsent
	case '{':
		members, err := decodeObject(raw)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, errAbsent
		}
		choices := make([]Choice, 0, len(members))
		for _, m := range members {
			label, err := choiceLabel(m.Value)
			if err != nil {
				return nil, fmt.Errorf("choice %q: %w", m.Key, err)
			}
			choices = append(choices, Choice{Key: m.Key, Label: label})
		}
		return choices, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, errAbsent
		}
		return listChoices(elems, rules)
	default:
		return nil, fmt.Errorf("unsupported choices kind")
	}
}

func listChoices(elems []json.RawMessage, rules Rules) ([]Choice, error) {
	first := kind(elems[0])
	choices := make([]Choice, 0, len(elems))
	for i, e := range elems {
		if kind(e) != first {
			return nil, fmt.Errorf("choice %d: mixed element kinds", i)
		}
		switch first {
		case '0':
			level, _ := scalarString(e)
			choices = append(choices, Choice{Key: level, Label: fmt.Sprintf(rules.levelLabel(), level)})
		case '"':
			text, _ := scalarString(e)
			if text == "" {
				return nil, fmt.Errorf("choice %d: empty", i)
			}
			choices = append(choices, Choice{Key: text, Label: text})
		case '{':
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(e, &obj); err != nil {
				return nil, err
			}
			key := firstString(obj, "key", "value", "id")
			label := firstString(obj, "label", "text", "title")
			if key == "" || label == "" {
				return nil, fmt.Errorf("choice %d: missing key or label", i)
			}
			choices = append(choices, Choice{Key: key, Label: label})
		default:
			return nil, fmt.Errorf("choice %d: unsupported kind", i)
		}
	}
	return choices, nil
}

// choiceLabel reads a keyed-object value: either the label itself or an object holding it.
func choiceLabel(raw json.RawMessage) (string, error) {
	if s, ok := scalarString(raw); ok && s != "" {
		return s, nil
	}
	if kind(raw) == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		if label := firstString(obj, "label", "text", "title"); label != "" {
			return label, nil
		}
	}
	return "", fmt.Errorf("missing label")
}
