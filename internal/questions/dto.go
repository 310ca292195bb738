package questions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/pkg/db/models"
)

// QuestionDTO is the canonical question shape returned by the API.
type QuestionDTO struct {
	ID             uuid.UUID  `json:"id"`
	PDFID          uuid.UUID  `json:"pdf_id"`
	PageNumber     int        `json:"page_number"`
	ImageID        *uuid.UUID `json:"image_id"`
	Text           string     `json:"text"`
	Options        []string   `json:"options"`
	Answer         *string    `json:"answer"`
	ContainsFigure bool       `json:"contains_figure_or_diagram"`
	CreatedAt      time.Time  `json:"created_at"`
}

func FromModel(q *models.Question) QuestionDTO {
	options := []string(q.Options)
	if options == nil {
		options = []string{}
	}
	return QuestionDTO{
		ID:             q.ID,
		PDFID:          q.PDFID,
		PageNumber:     q.PageNumber,
		ImageID:        q.ImageID,
		Text:           q.Text,
		Options:        options,
		Answer:         q.Answer,
		ContainsFigure: q.ContainsFigure,
		CreatedAt:      q.CreatedAt,
	}
}

func fromModels(rows []models.Question) []QuestionDTO {
	out := make([]QuestionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
