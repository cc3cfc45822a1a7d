// Package schema validates structured responses from the generation service before they reach the
// workflow. A response that does not parse or misses a required field fails the whole call.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrMalformed = errors.New("response is not valid JSON")

// Schema is a named JSON Schema document, compiled once at package init.
type Schema struct {
	Name     string
	Doc      string
	compiled *gojsonschema.Schema
}

func define(name, doc string) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return &Schema{Name: name, Doc: doc, compiled: compiled}
}

// Raw returns the document for embedding into a request body.
func (s *Schema) Raw() json.RawMessage {
	return json.RawMessage(s.Doc)
}

// ValidationError lists every violation found in a response.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: response failed validation", ve.Schema))
	for _, fe := range ve.Errors {
		sb.WriteString(fmt.Sprintf("; %s: %s", fe.Field, fe.Message))
	}
	return sb.String()
}

// Validate cleans raw model text and checks it against s. It returns the cleaned JSON payload.
func (s *Schema) Validate(raw string) ([]byte, error) {
	payload, err := Clean(raw)
	if err != nil {
		return nil, err
	}

	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if result.Valid() {
		return payload, nil
	}

	ve := &ValidationError{Schema: s.Name}
	for _, re := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{Field: re.Field(), Message: re.Description()})
	}
	return nil, ve
}

// Decode validates raw and unmarshals it into out.
func (s *Schema) Decode(raw string, out any) error {
	payload, err := s.Validate(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Clean strips markdown fences and surrounding prose, returning the outermost JSON value.
func Clean(raw string) ([]byte, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, ErrMalformed
	}

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	if objIdx == -1 && arrIdx == -1 {
		return nil, ErrMalformed
	}

	start, closer := objIdx, "}"
	if objIdx == -1 || (arrIdx != -1 && arrIdx < objIdx) {
		start, closer = arrIdx, "]"
	}
	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return nil, ErrMalformed
	}

	payload := []byte(text[:end+1])
	if !json.Valid(payload) {
		return nil, ErrMalformed
	}
	return payload, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
