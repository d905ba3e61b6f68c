package api

import _ "embed"

// OpenAPIDocument is the embedded OpenAPI contract, served at /openapi.yml
// regardless of the process working directory.
//
//go:embed openapi.yml
var OpenAPIDocument []byte
