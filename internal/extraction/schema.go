package extraction

import (
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const questionsSchemaURL = "questions.schema.json"

// questionsSchemaJSON is the contract every model response is validated against.
const questionsSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["question_text", "contains_figure_or_diagram", "options"],
    "properties": {
      "question_text": {"type": "string", "minLength": 1},
      "contains_figure_or_diagram": {"type": "boolean"},
      "options": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["text"],
          "properties": {
            "text": {"type": "string"}
          }
        }
      },
      "answer": {"type": ["string", "null"]}
    }
  }
}`

func compileQuestionsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(questionsSchemaURL, strings.NewReader(questionsSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(questionsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

var questionsSchema = mustCompileQuestionsSchema()

func mustCompileQuestionsSchema() *jsonschema.Schema {
	schema, err := compileQuestionsSchema()
	if err != nil {
		panic(err)
	}
	return schema
}

// responseSchema mirrors questionsSchemaJSON for the model's constrained decoding.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question_text":              {Type: genai.TypeString},
				"contains_figure_or_diagram": {Type: genai.TypeBoolean},
				"options": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type:       genai.TypeObject,
						Properties: map[string]*genai.Schema{"text": {Type: genai.TypeString}},
						Required:   []string{"text"},
					},
				},
				"answer": {Type: genai.TypeString, Nullable: true},
			},
			Required: []string{"question_text", "contains_figure_or_diagram", "options"},
		},
	}
}
