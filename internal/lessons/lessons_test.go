package lessons

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lessonA = `{
  "id": "a", "title": "A", "category": "tense", "order": 2,
  "practices": [{
    "id": "p1", "widget": "multiple_choice", "title": "P1",
    "steps": [{"question": "q", "choices": [{"text": "x", "is_correct": false}, {"text": "y", "is_correct": true}]}]
  }, {
    "id": "p2", "widget": "story", "title": "P2",
    "steps": [{"prompt": "I ___ home.", "choices": [{"text": "went", "is_correct": true}]}]
  }]
}`

const lessonB = `{
  "id": "b", "title": "B", "category": "vocabulary", "order": 1,
  "practices": [{
    "id": "build", "widget": "sentence_builder", "title": "Build",
    "steps": [{"words": [{"en": "go", "cn": "去"}, {"en": "We", "cn": "我们"}], "correct": ["We", "go"]}]
  }]
}`

func resetRegistry(t *testing.T) {
	t.Helper()
	mu.Lock()
	lessons = nil
	byID = make(map[string]*Lesson)
	mu.Unlock()
}

func TestLoad_SortsByOrderAndSkipsOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"data/a.json":    {Data: []byte(lessonA)},
		"data/b.json":    {Data: []byte(lessonB)},
		"data/README.md": {Data: []byte("notes")},
	}

	got, err := Load(fsys, "data")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, WidgetStory, got[1].Practices[1].Widget)
}

func TestLoad_ReportsParseErrors(t *testing.T) {
	fsys := fstest.MapFS{"data/bad.json": {Data: []byte("{")}}

	_, err := Load(fsys, "data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse bad.json")
}

func TestValidate(t *testing.T) {
	choices := func(correct ...bool) []Choice {
		out := make([]Choice, len(correct))
		for i, c := range correct {
			out[i] = Choice{Text: string(rune('A' + i)), IsCorrect: c}
		}
		return out
	}

	tests := []struct {
		name    string
		widget  Widget
		step    Step
		wantErr string
	}{
		{"one correct", WidgetMultipleChoice, Step{Question: "q", Choices: choices(false, true)}, ""},
		{"no correct", WidgetMultipleChoice, Step{Question: "q", Choices: choices(false, false)}, "got 0"},
		{"two correct", WidgetMultipleChoice, Step{Question: "q", Choices: choices(true, true)}, "got 2"},
		{"missing question", WidgetMultipleChoice, Step{Choices: choices(true)}, "missing question"},
		{"fill blank parts", WidgetFillBlank, Step{SentenceParts: []string{"only"}, Choices: choices(true)}, "want 2 sentence parts"},
		{"story without gap", WidgetStory, Step{Prompt: "no gap", Choices: choices(true)}, "gap marker"},
		{"story with two gaps", WidgetStory, Step{Prompt: "___ and ___", Choices: choices(true)}, "got 2"},
		{"builder word missing", WidgetSentenceBuilder, Step{Words: []Word{{English: "a"}}, Correct: []string{"a", "a"}}, `word "a" not in word bank`},
		{"builder multi-word tile", WidgetSentenceBuilder, Step{Words: []Word{{English: "a lot"}, {English: "likes"}}, Correct: []string{"likes", "a lot"}}, `tile "a lot" must be a single word`},
		{"builder padded correct word", WidgetSentenceBuilder, Step{Words: []Word{{English: "a"}}, Correct: []string{" a"}}, `tile " a" must be a single word`},
		{"builder ok", WidgetSentenceBuilder, Step{Words: []Word{{English: "b"}, {English: "a"}}, Correct: []string{"a", "b"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Lesson{ID: "x", Title: "X", Practices: []Practice{{ID: "p", Widget: tt.widget, Steps: []Step{tt.step}}}}
			err := l.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidContent))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	l := &Lesson{
		ID: "x",
		Practices: []Practice{
			{ID: "p", Widget: "slider"},
			{ID: "p", Widget: WidgetMultipleChoice},
		},
	}
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing title")
	assert.Contains(t, err.Error(), `unknown widget "slider"`)
	assert.Contains(t, err.Error(), `duplicate practice "p"`)
}

func TestRegistry(t *testing.T) {
	resetRegistry(t)
	t.Cleanup(func() { resetRegistry(t) })

	got, err := Load(fstest.MapFS{
		"data/a.json": {Data: []byte(lessonA)},
		"data/b.json": {Data: []byte(lessonB)},
	}, "data")
	require.NoError(t, err)
	Register(got)

	all := GetAllLessons()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	l, p := GetPractice("a", "p2")
	require.NotNil(t, l)
	require.NotNil(t, p)
	assert.Equal(t, "P2", p.Title)
	assert.Equal(t, "p2", l.NextPractice("p1").ID)
	assert.Nil(t, l.NextPractice("p2"))

	l, p = GetPractice("a", "nope")
	assert.Nil(t, l)
	assert.Nil(t, p)

	groups := ByCategory()
	assert.Len(t, groups[CategoryTense], 1)
	assert.Len(t, groups[CategoryVocabulary], 1)
}

func TestStep_Spoken(t *testing.T) {
	fill := Step{SentenceParts: []string{"Look! It ", " outside."}, Choices: []Choice{{Text: "snows"}, {Text: "is snowing", IsCorrect: true}}}
	assert.Equal(t, "Look! It is snowing outside.", fill.Spoken())

	story := Step{Prompt: "We ___ home.", Choices: []Choice{{Text: "went", IsCorrect: true}}}
	before, after := story.PromptParts()
	assert.Equal(t, "We ", before)
	assert.Equal(t, " home.", after)
	assert.Equal(t, "We went home.", story.Spoken())

	builder := Step{Correct: []string{"He", "reads"}}
	assert.Equal(t, "He reads", builder.Spoken())

	mc := Step{Question: "fridge", Choices: []Choice{{Text: "冰箱", IsCorrect: true}}}
	assert.Equal(t, "fridge", mc.Spoken())
	assert.Equal(t, 0, mc.CorrectIndex())
}
