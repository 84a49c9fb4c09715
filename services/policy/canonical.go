package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/civinigrani/civigate/models"
)

// stableJSON encodes v with deterministic key ordering so that semantically
// identical argument sets always serialize identically.
func stableJSON(v interface{}) ([]byte, error) {
	stable, err := normalize(v)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stable); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

func normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case models.Args:
		return normalize(map[string]interface{}(val))
	case map[string]interface{}:
		// Maps stay JSON objects so a map can never serialize the same as
		// an array of its flattened pairs; encoding/json emits object keys
		// in sorted order, which keeps the encoding deterministic.
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case json.Number:
		return val.String(), nil
	case string, float64, bool, nil:
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		var decoded interface{}
		if err := json.Unmarshal(b, &decoded); err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		return normalize(decoded)
	}
}

// HashArgs computes the canonical, order-independent hash of an argument
// mapping. Both the policy engine (at minting) and the tool server (at
// consumption) derive the hash through this single path.
func HashArgs(args models.Args) (string, error) {
	if args == nil {
		args = models.Args{}
	}
	data, err := stableJSON(args)
	if err != nil {
		return "", fmt.Errorf("canonicalize arguments: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
