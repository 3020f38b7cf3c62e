package config

import (
	"os"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
	"github.com/m-mizutani/goerr/v2"
)

// configSchema constrains the optional YAML file the serve command accepts
// via --config: every field is optional, but if present must have the
// right shape. The file is only validated; serve does not apply any of its
// values, so settings still come from flags and environment variables.
const configSchema = `
addr?:       string
adminToken?: string
firestore?: {
	projectID?:  string
	databaseID?: string
}
postgres?: {
	dsn?: string
}
bigquery?: {
	projectID?: string
	dataset?:   string
	table?:     string
}
gcs?: {
	bucket?: string
}
policy?: {
	path?: string
}
`

// ValidateConfigFile parses path as YAML and checks it against
// configSchema. It returns the parsed raw bytes unchanged so callers can
// continue to unmarshal them normally; validation only rejects a
// malformed file before any flag is applied.
func ValidateConfigFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		return nil, goerr.Wrap(schema.Err(), "invalid built-in config schema")
	}

	astFile, err := yaml.Extract(path, raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file as YAML", goerr.V("path", path))
	}

	cueValue := ctx.BuildFile(astFile)
	unified := schema.Unify(cueValue)
	if err := unified.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config file failed schema validation", goerr.V("path", path))
	}

	return raw, nil
}
