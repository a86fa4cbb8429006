package asr

import "testing"

func TestDecodeRecognitionResult(t *testing.T) {
	body := []byte(`{
		"result_status": "RECOGNIZED",
		"segment_index": 0,
		"last_segment": true,
		"final_result": true,
		"start_time": 0.11,
		"end_time": 2.53,
		"alternatives": [
			{
				"text": "ligar para o suporte",
				"score": 92,
				"lm": "builtin:slm/general",
				"words": [
					{"text": "ligar", "score": 95, "start_time": 0.11, "end_time": 0.53},
					{"text": "para", "score": 90, "start_time": 0.53, "end_time": 0.71}
				],
				"interpretations": [{"intent": "support_call"}]
			},
			{
				"text": "ligar para o transporte",
				"score": 61,
				"lm": "builtin:slm/general"
			}
		]
	}`)

	result, err := DecodeRecognitionResult(body)
	if err != nil {
		t.Fatalf("DecodeRecognitionResult() error = %v", err)
	}
	if result.ResultStatus != ResultStatusRecognized {
		t.Errorf("status = %q, want %q", result.ResultStatus, ResultStatusRecognized)
	}
	if !result.LastSegment || !result.IsFinal() {
		t.Errorf("last_segment = %v, final = %v, want both true", result.LastSegment, result.IsFinal())
	}
	if len(result.Alternatives) != 2 {
		t.Fatalf("alternatives = %d, want 2", len(result.Alternatives))
	}
	if got := result.Text(); got != "ligar para o suporte" {
		t.Errorf("Text() = %q", got)
	}
	best := result.Alternatives[0]
	if best.Score != 92 || best.LanguageModel != "builtin:slm/general" {
		t.Errorf("best alternative = %+v", best)
	}
	if len(best.Words) != 2 || best.Words[0].Text != "ligar" {
		t.Errorf("words = %+v", best.Words)
	}
	if len(best.Interpretations) != 1 {
		t.Errorf("interpretations = %d, want 1", len(best.Interpretations))
	}
}

func TestDecodeRecognitionResultNoSpeech(t *testing.T) {
	body := []byte(`{
		"result_status": "NO_SPEECH",
		"segment_index": 0,
		"last_segment": true,
		"final_result": true,
		"alternatives": []
	}`)

	result, err := DecodeRecognitionResult(body)
	if err != nil {
		t.Fatalf("DecodeRecognitionResult() error = %v", err)
	}
	if result.ResultStatus != ResultStatusNoSpeech {
		t.Errorf("status = %q, want %q", result.ResultStatus, ResultStatusNoSpeech)
	}
	if len(result.Alternatives) != 0 {
		t.Errorf("alternatives = %d, want 0", len(result.Alternatives))
	}
	if result.Text() != "" {
		t.Errorf("Text() = %q, want empty", result.Text())
	}
}

func TestDecodeRecognitionResultInvalidJSON(t *testing.T) {
	if _, err := DecodeRecognitionResult([]byte("{not json")); err == nil {
		t.Error("DecodeRecognitionResult() error = nil, want error")
	}
}

func TestDecodePartialRecognitionResult(t *testing.T) {
	body := []byte(`{
		"result_status": "PROCESSING",
		"segment_index": 2,
		"final_result": false,
		"alternatives": [{"text": "ligar par"}]
	}`)

	partial, err := DecodePartialRecognitionResult(body)
	if err != nil {
		t.Fatalf("DecodePartialRecognitionResult() error = %v", err)
	}
	if partial.SpeechSegmentIndex != 2 {
		t.Errorf("segment index = %d, want 2", partial.SpeechSegmentIndex)
	}
	if partial.Text != "ligar par" {
		t.Errorf("text = %q", partial.Text)
	}
}

func TestDecodePartialRecognitionResultWithoutAlternatives(t *testing.T) {
	partial, err := DecodePartialRecognitionResult([]byte(`{"segment_index": 1, "alternatives": []}`))
	if err != nil {
		t.Fatalf("DecodePartialRecognitionResult() error = %v", err)
	}
	if partial.Text != "" {
		t.Errorf("text = %q, want empty", partial.Text)
	}
}
