package loaders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"docqa/internal/models"
)

// ErrNotQuestionSet is returned for JSON that is not an array of objects.
var ErrNotQuestionSet = errors.New("question set must be a JSON array of objects")

// ParseQuestionSet decodes a question-set upload. Entries are kept verbatim.
func ParseQuestionSet(data []byte) ([]models.QuestionRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotQuestionSet
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotQuestionSet, err)
	}

	questions := make([]models.QuestionRecord, 0, len(raw))
	for i, item := range raw {
		var q models.QuestionRecord
		if err := json.Unmarshal(item, &q); err != nil || q == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrNotQuestionSet, i)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
