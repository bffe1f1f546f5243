package lessons

import "strings"

// GapMarker marks the blank in story prompts.
const GapMarker = "___"

// Category groups lessons on the menu.
type Category string

const (
	CategoryTense         Category = "tense"
	CategoryStructure     Category = "structure"
	CategoryVocabulary    Category = "vocabulary"
	CategoryPronunciation Category = "pronunciation"
	CategoryMultiPOS      Category = "multi_pos"
)

// Label returns the menu heading for the category.
func (c Category) Label() string {
	switch c {
	case CategoryTense:
		return "Tenses 时态"
	case CategoryStructure:
		return "Sentence Structure 句子结构"
	case CategoryVocabulary:
		return "Vocabulary 词汇"
	case CategoryPronunciation:
		return "Pronunciation 发音"
	case CategoryMultiPOS:
		return "Words with Many Roles 一词多性"
	}
	return string(c)
}

// Categories lists categories in menu order.
var Categories = []Category{
	CategoryTense,
	CategoryStructure,
	CategoryVocabulary,
	CategoryPronunciation,
	CategoryMultiPOS,
}

// Widget identifies the kind of practice a learner works through.
type Widget string

const (
	WidgetMultipleChoice  Widget = "multiple_choice"
	WidgetFillBlank       Widget = "fill_blank"
	WidgetSentenceBuilder Widget = "sentence_builder"
	WidgetStory           Widget = "story"
)

// UsesChoices reports whether steps of this widget are answered by picking an option.
func (w Widget) UsesChoices() bool {
	return w != WidgetSentenceBuilder
}

// Lesson is one topic in the catalog.
type Lesson struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle"`
	Category  Category   `json:"category"`
	Order     int        `json:"order"`
	Sections  []Section  `json:"sections"`
	Practices []Practice `json:"practices"`
}

// Practice returns the practice with the given ID, or nil.
func (l *Lesson) Practice(id string) *Practice {
	for i := range l.Practices {
		if l.Practices[i].ID == id {
			return &l.Practices[i]
		}
	}
	return nil
}

// NextPractice returns the practice after id within the lesson, or nil.
func (l *Lesson) NextPractice(id string) *Practice {
	for i := range l.Practices {
		if l.Practices[i].ID == id && i+1 < len(l.Practices) {
			return &l.Practices[i+1]
		}
	}
	return nil
}

type Section struct {
	Title       string    `json:"title"`
	Explanation string    `json:"explanation,omitempty"`
	Examples    []Example `json:"examples,omitempty"`
}

// Example is an English sentence with its Chinese translation.
type Example struct {
	English string `json:"en"`
	Chinese string `json:"cn"`
	Note    string `json:"note,omitempty"`
}

// Practice is an ordered run of steps rendered by a single widget.
type Practice struct {
	ID         string     `json:"id"`
	Widget     Widget     `json:"widget"`
	Title      string     `json:"title"`
	Story      string     `json:"story,omitempty"`
	AllowJump  bool       `json:"allow_jump,omitempty"`
	Completion Completion `json:"completion"`
	Steps      []Step     `json:"steps"`
}

// Completion holds the messages shown on the summary screen.
type Completion struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Step is one question. Which fields are set depends on the practice widget.
type Step struct {
	// multiple_choice
	Question string `json:"question,omitempty"`

	// multiple_choice, fill_blank, story
	Choices     []Choice `json:"choices,omitempty"`
	ChineseHint string   `json:"chinese_hint,omitempty"`

	// fill_blank
	SentenceParts []string `json:"sentence_parts,omitempty"`

	// story
	Prompt string `json:"prompt,omitempty"`

	// sentence_builder
	Words   []Word   `json:"words,omitempty"`
	Correct []string `json:"correct,omitempty"`
	Chinese string   `json:"chinese,omitempty"`
}

// CorrectIndex returns the index of the correct choice, or -1.
func (s Step) CorrectIndex() int {
	for i, c := range s.Choices {
		if c.IsCorrect {
			return i
		}
	}
	return -1
}

// CorrectText returns the text a learner should end up with for this step.
func (s Step) CorrectText() string {
	if len(s.Correct) > 0 {
		return strings.Join(s.Correct, " ")
	}
	if i := s.CorrectIndex(); i >= 0 {
		return s.Choices[i].Text
	}
	return ""
}

// PromptParts splits a story prompt around its gap marker.
func (s Step) PromptParts() (before, after string) {
	before, after, _ = strings.Cut(s.Prompt, GapMarker)
	return before, after
}

// Spoken returns the full sentence with the gap filled by the correct answer,
// suitable for reading aloud.
func (s Step) Spoken() string {
	switch {
	case len(s.SentenceParts) == 2:
		return strings.TrimSpace(s.SentenceParts[0] + s.CorrectText() + s.SentenceParts[1])
	case s.Prompt != "":
		before, after := s.PromptParts()
		return strings.TrimSpace(before + s.CorrectText() + after)
	case len(s.Correct) > 0:
		return s.CorrectText()
	}
	return s.Question
}

type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Word is a tile in the sentence builder.
type Word struct {
	English string `json:"en"`
	Chinese string `json:"cn"`
}
