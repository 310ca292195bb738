package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionRecord is one question read off a page image.
type QuestionRecord struct {
	Text           string
	ContainsFigure bool
	Options        []string
	Answer         *string
}

type rawOption struct {
	Text string `json:"text"`
}

type rawQuestion struct {
	QuestionText   string      `json:"question_text"`
	ContainsFigure bool        `json:"contains_figure_or_diagram"`
	Options        []rawOption `json:"options"`
	Answer         *string     `json:"answer"`
}

// parseResponse validates the model output and maps it to records. Every failure
// wraps ErrFormat.
func parseResponse(text string) ([]QuestionRecord, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrFormat)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %w", ErrFormat, err)
	}
	if err := questionsSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: json does not match schema: %w", ErrFormat, err)
	}

	var raw []rawQuestion
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrFormat, err)
	}

	records := make([]QuestionRecord, 0, len(raw))
	for _, q := range raw {
		options := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, opt.Text)
		}
		records = append(records, QuestionRecord{
			Text:           q.QuestionText,
			ContainsFigure: q.ContainsFigure,
			Options:        options,
			Answer:         q.Answer,
		})
	}
	return records, nil
}

func stripFences(text string) string {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
