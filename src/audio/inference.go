package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
)

// ----- Inference Result ----- //

// keys the estimator produces but the engine keeps fixed
var skippedInferenceKeys = map[string]struct{}{
	"BFRQ":      {},
	"NOISE_A":   {},
	"NOISE_C":   {},
	"NOTE_OFF":  {},
	"AMP_FLOOR": {},
	// modulation stages that are not part of this engine
	"LFO_RATE":  {},
	"LFO_LEVEL": {},
	"MD_DELAY":  {},
	"MD_DEPTH":  {},
	"MD_MIX":    {},
}

// ApplyInference forwards an estimator result into the parameter source.
// All values are normalized. A key with one value sets KEY, a key with two
// values sets KEY_1 and KEY_2. Unknown and fixed keys are skipped. It returns
// the number of parameters written.
func (p *Params) ApplyInference(result map[string][]float64) int {
	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	written := 0
	for _, key := range keys {
		if _, ok := skippedInferenceKeys[key]; ok {
			continue
		}
		values := result[key]
		switch len(values) {
		case 1:
			if err := p.SetNormalized(key, values[0]); err != nil {
				log.Printf("skipped inference key %s: %v\n", key, err)
				continue
			}
			written++
		case 2:
			for i, v := range values {
				k := fmt.Sprintf("%s_%d", key, i+1)
				if err := p.SetNormalized(k, v); err != nil {
					log.Printf("skipped inference key %s: %v\n", k, err)
					continue
				}
				written++
			}
		default:
			log.Printf("skipped inference key %s: expected 1 or 2 values, got %d\n", key, len(values))
		}
	}
	return written
}

// ApplyInferenceJSON decodes {"KEY": v | [v1, v2], ...} and applies it.
func (p *Params) ApplyInferenceJSON(data []byte) (int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to decode inference result: %w", err)
	}
	result := make(map[string][]float64, len(raw))
	for key, value := range raw {
		var single float64
		if err := json.Unmarshal(value, &single); err == nil {
			result[key] = []float64{single}
			continue
		}
		var pair []float64
		if err := json.Unmarshal(value, &pair); err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		result[key] = pair
	}
	return p.ApplyInference(result), nil
}
