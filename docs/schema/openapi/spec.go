// Package openapi embeds the OpenAPI description of the replacement HTTP API
// for runtime distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document for the HTTP API.
//
//go:embed replacechain-api.yaml
var APISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
