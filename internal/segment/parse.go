package segment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// resultEnvelope matches the segmenter's object form {"segments": [...]}.
type resultEnvelope struct {
	Segments []segmentPayload `json:"segments"`
}

type segmentPayload struct {
	ID            string  `json:"id"`
	DocType       string  `json:"doc_type"`
	Pages         []int   `json:"pages"`
	SupplierGuess string  `json:"supplier_guess"`
	Confidence    float64 `json:"confidence"`
	Text          string  `json:"text"`
}

// ParseResult parses the JSON produced by the external segmentation step.
// LLM-backed segmenters wrap their output in markdown code fences and
// occasionally prepend prose, so the payload is located before decoding.
// Both a bare array and a {"segments": [...]} envelope are accepted.
//
// Entries without pages are dropped, unknown document types fall back to
// "other" and confidences are clamped; only undecodable JSON is an error.
func ParseResult(data []byte) ([]*Segment, error) {
	text := strings.TrimSpace(string(data))

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	payloads, err := decodePayloads(text)
	if err != nil {
		return nil, err
	}

	segments := make([]*Segment, 0, len(payloads))
	for _, p := range payloads {
		if len(p.Pages) == 0 {
			continue
		}
		docType := DocType(strings.ToLower(strings.TrimSpace(p.DocType)))
		if !docType.Valid() {
			docType = TypeOther
		}
		confidence := p.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		pages := append([]int(nil), p.Pages...)
		sort.Ints(pages)
		segments = append(segments, &Segment{
			ID:            strings.TrimSpace(p.ID),
			DocType:       docType,
			Pages:         pages,
			SupplierGuess: strings.TrimSpace(p.SupplierGuess),
			Confidence:    confidence,
			Text:          p.Text,
		})
	}
	return segments, nil
}

func decodePayloads(text string) ([]segmentPayload, error) {
	arrStart := strings.Index(text, "[")
	objStart := strings.Index(text, "{")

	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		end := strings.LastIndex(text, "]")
		if end < arrStart {
			return nil, fmt.Errorf("unterminated JSON array in segmentation result")
		}
		var payloads []segmentPayload
		if err := json.Unmarshal([]byte(text[arrStart:end+1]), &payloads); err != nil {
			return nil, fmt.Errorf("unmarshaling segmentation result: %w", err)
		}
		return payloads, nil
	}

	if objStart == -1 {
		return nil, fmt.Errorf("no JSON found in segmentation result")
	}
	end := strings.LastIndex(text, "}")
	if end < objStart {
		return nil, fmt.Errorf("unterminated JSON object in segmentation result")
	}
	var envelope resultEnvelope
	if err := json.Unmarshal([]byte(text[objStart:end+1]), &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling segmentation result: %w", err)
	}
	return envelope.Segments, nil
}
