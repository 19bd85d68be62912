package question

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var skipRules = Rules{NoChoices: NoChoicesSkip}

func TestNormalizeKeyedObjectKeepsSourceOrder(t *testing.T) {
	raw := json.RawMessage(`[{"id":"q1","question":"Pick","options":{"b":{"label":"Bravo"},"a":"Alpha","c":{"text":"Charlie"}}}]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	assert.Equal(t, []Choice{
		{Key: "b", Label: "Bravo"},
		{Key: "a", Label: "Alpha"},
		{Key: "c", Label: "Charlie"},
	}, set.Questions[0].Choices)
	assert.False(t, set.Grouped)
}

func TestNormalizeNumericScale(t *testing.T) {
	raw := json.RawMessage(`[{"id":12,"question":"I stay calm","options":[1,2,3,4,5]}]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)

	q := set.Questions[0]
	assert.Equal(t, "12", q.ID)
	assert.Equal(t, []Choice{
		{Key: "1", Label: "Mức độ 1"},
		{Key: "2", Label: "Mức độ 2"},
		{Key: "3", Label: "Mức độ 3"},
		{Key: "4", Label: "Mức độ 4"},
		{Key: "5", Label: "Mức độ 5"},
	}, q.Choices)
}

func TestNormalizeCustomLevelLabel(t *testing.T) {
	raw := json.RawMessage(`[{"id":1,"question":"Q","choices":[1,2]}]`)

	set, err := Normalize(raw, Rules{NoChoices: NoChoicesSkip, LevelLabel: "level %s"})
	require.NoError(t, err)
	assert.Equal(t, "level 2", set.Questions[0].Choices[1].Label)
}

func TestNormalizeAbsentChoicesFollowsPolicy(t *testing.T) {
	raw := json.RawMessage(`[{"id":1,"question":"Money matters most"},{"id":2,"question":"Family first","options":null},{"id":3,"question":"Q","options":{}}]`)

	binary, err := Normalize(raw, Rules{NoChoices: NoChoicesBinary})
	require.NoError(t, err)
	require.Len(t, binary.Questions, 3)
	for _, q := range binary.Questions {
		assert.Equal(t, DefaultBinaryChoices, q.Choices)
	}

	_, err = Normalize(raw, skipRules)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestNormalizeBinaryChoicesAreCopies(t *testing.T) {
	raw := json.RawMessage(`[{"id":1,"question":"A"},{"id":2,"question":"B"}]`)

	set, err := Normalize(raw, Rules{NoChoices: NoChoicesBinary})
	require.NoError(t, err)
	set.Questions[0].Choices[0].Label = "changed"
	assert.Equal(t, "Đồng ý", set.Questions[1].Choices[0].Label)
	assert.Equal(t, "Đồng ý", DefaultBinaryChoices[0].Label)
}

func TestNormalizeSkipsComplexItems(t *testing.T) {
	raw := json.RawMessage(`[
		{"id":1,"question":"Sequence","options":{"a":"2","b":"4"}},
		{"id":2,"type":"complex","question":"Multi part","parts":[{"q":"x"}]},
		{"id":3,"question":"Odd one out","options":{"a":"cat","b":"dog"}}
	]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	assert.Equal(t, "1", set.Questions[0].ID)
	assert.Equal(t, "3", set.Questions[1].ID)
	require.Len(t, set.Skipped, 1)
	assert.Equal(t, Skip{Index: 1, ID: "2", Reason: SkipUnsupportedType}, set.Skipped[0])
}

func TestNormalizeNeverFailsOnSingleBadItem(t *testing.T) {
	raw := json.RawMessage(`[
		"not an object",
		{"question":"no id","options":[1,2]},
		{"id":5,"options":[1,2]},
		{"id":6,"question":"mixed","options":[1,"two"]},
		{"id":7,"question":"bad label","options":{"a":{"weight":1}}},
		{"id":8,"question":{"nested":true}},
		{"id":9,"question":"fine","options":[{"key":"x","label":"X"},{"value":"y","text":"Y"}]}
	]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	assert.Equal(t, []Choice{{Key: "x", Label: "X"}, {Key: "y", Label: "Y"}}, set.Questions[0].Choices)

	reasons := make([]string, 0, len(set.Skipped))
	for _, s := range set.Skipped {
		reasons = append(reasons, s.Reason)
	}
	assert.Equal(t, []string{
		SkipMalformedItem,
		SkipMissingID,
		SkipMissingPrompt,
		SkipMalformedChoices,
		SkipMalformedChoices,
		SkipMissingPrompt,
	}, reasons)
}

func TestNormalizeStringChoices(t *testing.T) {
	raw := json.RawMessage(`[{"id":"v1","text":"Pick one","choices":["Yes","No"]}]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	assert.Equal(t, "Pick one", set.Questions[0].Prompt)
	assert.Equal(t, []Choice{{Key: "Yes", Label: "Yes"}, {Key: "No", Label: "No"}}, set.Questions[0].Choices)
}

func TestNormalizeSkipsDuplicateIDs(t *testing.T) {
	raw := json.RawMessage(`[{"id":1,"question":"A","options":[1,2]},{"id":"1","question":"B","options":[1,2]}]`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	assert.Equal(t, "A", set.Questions[0].Prompt)
	assert.Equal(t, SkipDuplicateID, set.Skipped[0].Reason)
}

func TestNormalizeGroupedPayload(t *testing.T) {
	raw := json.RawMessage(`{
		"mbti": [{"id":1,"question":"Party?","options":{"E":"Yes","I":"No"}}],
		"eq": [{"id":1,"question":"Calm?","options":[1,2,3]}],
		"values": [{"id":4,"question":"Money?"}]
	}`)

	set, err := Normalize(raw, Rules{NoChoices: NoChoicesBinary})
	require.NoError(t, err)
	assert.True(t, set.Grouped)
	require.Len(t, set.Questions, 3)

	ids := []string{set.Questions[0].ID, set.Questions[1].ID, set.Questions[2].ID}
	assert.Equal(t, []string{"mbti:1", "eq:1", "values:4"}, ids)
	assert.Equal(t, "1", set.Questions[1].SourceID)
	assert.Equal(t, "eq", set.Questions[1].Group)
	assert.Equal(t, DefaultBinaryChoices, set.Questions[2].Choices)
}

func TestNormalizeItemGroupOverridesContainer(t *testing.T) {
	raw := json.RawMessage(`{"misc":[{"id":1,"question":"Q","group":"holland","options":{"R":"Build"}}]}`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	assert.Equal(t, "misc:1", set.Questions[0].ID)
	assert.Equal(t, "holland", set.Questions[0].Group)
}

func TestNormalizeUnwrapsEnvelope(t *testing.T) {
	raw := json.RawMessage(`{"success":true,"data":[{"id":1,"question":"Q","category":"holland","options":{"R":"Fix"}}]}`)

	set, err := Normalize(raw, skipRules)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	assert.Equal(t, "holland", set.Questions[0].Group)
}

func TestNormalizeRejectsUnusablePayloads(t *testing.T) {
	cases := map[string]string{
		"scalar":         `"hello"`,
		"null":           `null`,
		"group not list": `{"mbti":{"id":1}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(json.RawMessage(payload), skipRules)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestNormalizeRequiresPolicy(t *testing.T) {
	_, err := Normalize(json.RawMessage(`[]`), Rules{})
	assert.ErrorIs(t, err, ErrInvalidRules)
}

func TestNormalizedIDsAreUnique(t *testing.T) {
	payloads := []string{
		`[{"id":1,"question":"A","options":[1]},{"id":2,"question":"B","options":[1]},{"id":1,"question":"C","options":[1]}]`,
		`{"a":[{"id":1,"question":"A","options":[1]}],"b":[{"id":1,"question":"B","options":[1]},{"id":1,"question":"B2","options":[1]}]}`,
		`{"data":{"x":[{"id":"z","question":"Z","options":[1]}],"y":[{"id":"z","question":"Z","options":[1]}]}}`,
	}
	for _, payload := range payloads {
		set, err := Normalize(json.RawMessage(payload), skipRules)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, q := range set.Questions {
			assert.False(t, seen[q.ID], "duplicate id %s", q.ID)
			seen[q.ID] = true
			assert.NotEmpty(t, q.Choices)
		}
	}
}
