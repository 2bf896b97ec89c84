package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// StateBuckets lists the keys used by table-backed stores that persist the
// record one field per row.
var StateBuckets = []string{"version", "products", "index_of", "union_find"}

// EncodeState renders the record as a single JSON document.
func EncodeState(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState parses a JSON document produced by EncodeState. Syntax errors
// are reported as MalformedStateError; semantic checks are left to Validate.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, &MalformedStateError{Reason: "decode snapshot", Err: err}
	}
	return s, nil
}

// EncodeBuckets splits the record into one JSON payload per StateBuckets key.
func EncodeBuckets(s State) (map[string][]byte, error) {
	out := make(map[string][]byte, len(StateBuckets))
	for _, bucket := range StateBuckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "version":
			data = []byte(strconv.Itoa(s.Version))
		case "products":
			data, err = json.Marshal(s.Products)
		case "index_of":
			data, err = json.Marshal(s.IndexOf)
		case "union_find":
			data, err = json.Marshal(s.UnionFind)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBuckets reassembles a record from bucket payloads. Missing buckets
// leave the corresponding field nil so Validate can reject them.
func DecodeBuckets(buckets map[string][]byte) (State, error) {
	var s State
	for bucket, payload := range buckets {
		var err error
		switch bucket {
		case "version":
			s.Version, err = strconv.Atoi(string(payload))
		case "products":
			err = json.Unmarshal(payload, &s.Products)
		case "index_of":
			err = json.Unmarshal(payload, &s.IndexOf)
		case "union_find":
			err = json.Unmarshal(payload, &s.UnionFind)
		default:
			continue
		}
		if err != nil {
			return State{}, &MalformedStateError{Reason: "decode " + bucket, Err: err}
		}
	}
	return s, nil
}
