package asr

import (
	"encoding/json"
	"fmt"
)

// ResultStatus indicates the outcome of a recognized speech segment.
type ResultStatus string

const (
	ResultStatusNone               ResultStatus = "NONE"
	ResultStatusProcessing         ResultStatus = "PROCESSING"
	ResultStatusRecognized         ResultStatus = "RECOGNIZED"
	ResultStatusNoMatch            ResultStatus = "NO_MATCH"
	ResultStatusNoInputTimeout     ResultStatus = "NO_INPUT_TIMEOUT"
	ResultStatusNoSpeech           ResultStatus = "NO_SPEECH"
	ResultStatusMaxSpeech          ResultStatus = "MAX_SPEECH"
	ResultStatusEarlySpeech        ResultStatus = "EARLY_SPEECH"
	ResultStatusRecognitionTimeout ResultStatus = "RECOGNITION_TIMEOUT"
	ResultStatusCanceled           ResultStatus = "CANCELED"
	ResultStatusFailure            ResultStatus = "FAILURE"
)

// Word is a single recognized word with its confidence and timing.
type Word struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Alternative is one recognition hypothesis for a speech segment.
type Alternative struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	// LanguageModel names the model that produced this hypothesis.
	LanguageModel string `json:"lm"`
	Words         []Word `json:"words"`
	// Interpretations carries semantic interpretations as raw JSON
	// fragments. Their schema is grammar-defined and opaque to the SDK.
	Interpretations []json.RawMessage `json:"interpretations"`
}

// RecognitionResult is the final result of one recognized speech segment.
type RecognitionResult struct {
	ResultStatus ResultStatus  `json:"result_status"`
	SegmentIndex int           `json:"segment_index"`
	LastSegment  bool          `json:"last_segment"`
	FinalResult  bool          `json:"final_result"`
	StartTime    float64       `json:"start_time"`
	EndTime      float64       `json:"end_time"`
	Alternatives []Alternative `json:"alternatives"`
}

// IsFinal reports whether this result terminates its segment. Non-final
// results are progress notifications and carry no alternatives.
func (r *RecognitionResult) IsFinal() bool {
	return r.FinalResult
}

// Text returns the text of the best alternative, or "" when the segment
// produced no hypothesis.
func (r *RecognitionResult) Text() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Text
}

// PartialRecognitionResult is an intermediate hypothesis for the segment
// being recognized. It is superseded by later partials and by the final
// result of the same segment.
type PartialRecognitionResult struct {
	SpeechSegmentIndex int
	Text               string
}

// DecodeRecognitionResult parses the JSON body of a RECOGNITION_RESULT
// message into a final result.
func DecodeRecognitionResult(body []byte) (*RecognitionResult, error) {
	var result RecognitionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode recognition result: %w", err)
	}
	return &result, nil
}

// DecodePartialRecognitionResult parses the JSON body of a partial
// RECOGNITION_RESULT message. The partial text is read from the first
// alternative; a partial without alternatives yields empty text.
func DecodePartialRecognitionResult(body []byte) (*PartialRecognitionResult, error) {
	var raw struct {
		SegmentIndex int `json:"segment_index"`
		Alternatives []struct {
			Text string `json:"text"`
		} `json:"alternatives"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode partial recognition result: %w", err)
	}
	partial := &PartialRecognitionResult{SpeechSegmentIndex: raw.SegmentIndex}
	if len(raw.Alternatives) > 0 {
		partial.Text = raw.Alternatives[0].Text
	}
	return partial, nil
}
