package plan

import (
	"encoding/json"
	"errors"

	"github.com/xeipuuv/gojsonschema"
)

// Plans and manifests come back from the artifact service as opaque zip
// contents. They are checked against these schemas before anything trusts
// their shape; structural invariants beyond the schema live in Validate.

const planSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["working_directory", "build"],
  "properties": {
    "working_directory": {"type": "string", "minLength": 1},
    "build": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "name", "source_file", "source_directory", "output_type", "output"],
        "properties": {
          "type": {"enum": ["charm", "rock", "docker-image", "file"]},
          "name": {"type": "string", "minLength": 1},
          "source_file": {"type": "string", "minLength": 1},
          "source_directory": {"type": "string", "minLength": 1},
          "build_target": {"type": "string"},
          "output_type": {"enum": ["file", "registry"]},
          "output": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

const entrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "name", "source_file", "source_directory", "output_type", "output"],
  "properties": {
    "type": {"enum": ["charm", "rock", "docker-image", "file"]},
    "name": {"type": "string", "minLength": 1},
    "source_file": {"type": "string", "minLength": 1},
    "source_directory": {"type": "string", "minLength": 1},
    "build_target": {"type": "string"},
    "output_type": {"enum": ["file", "registry"]},
    "output": {"type": "string", "minLength": 1}
  }
}`

const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "files": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "images": {"type": "array", "items": {"type": "string", "minLength": 1}}
  }
}`

var (
	errInvalidPlanDocument     = errors.New("invalid plan document")
	errInvalidEntryDocument    = errors.New("invalid build entry document")
	errInvalidManifestDocument = errors.New("invalid manifest document")
)

func validateAgainstSchema(schema string, data []byte, sentinel error) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return errors.Join(err, sentinel)
	}
	if result.Valid() {
		return nil
	}

	ve := NewValidationErrors()
	for _, desc := range result.Errors() {
		ve.AddErrorf("%s: %s", desc.Field(), desc.Description())
	}
	return errors.Join(ve, sentinel)
}

// Decode schema-validates, unmarshals and structurally validates a plan
// serialized as JSON. It is the single entry point for plan bytes coming
// from outside the process.
func Decode(data []byte) (Plan, error) {
	if err := validateAgainstSchema(planSchema, data, errInvalidPlanDocument); err != nil {
		return Plan{}, err
	}

	out := Plan{} //nolint:exhaustruct // unmarshal
	if err := json.Unmarshal(data, &out); err != nil {
		return Plan{}, errors.Join(err, errInvalidPlanDocument)
	}
	if err := out.Validate(); err != nil {
		return Plan{}, errors.Join(err, errInvalidPlanDocument)
	}

	return out, nil
}

// Encode serializes a plan to the JSON form stored in the plan artifact.
func (p Plan) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// DecodeEntry schema-validates and unmarshals one build entry, as passed
// to a build job through its matrix input.
func DecodeEntry(data []byte) (BuildEntry, error) {
	if err := validateAgainstSchema(entrySchema, data, errInvalidEntryDocument); err != nil {
		return BuildEntry{}, err
	}

	out := BuildEntry{} //nolint:exhaustruct // unmarshal
	if err := json.Unmarshal(data, &out); err != nil {
		return BuildEntry{}, errors.Join(err, errInvalidEntryDocument)
	}
	if err := out.Validate(); err != nil {
		return BuildEntry{}, errors.Join(err, errInvalidEntryDocument)
	}

	return out, nil
}

// DecodeManifest schema-validates and unmarshals a build manifest.
func DecodeManifest(data []byte) (Manifest, error) {
	if err := validateAgainstSchema(manifestSchema, data, errInvalidManifestDocument); err != nil {
		return Manifest{}, err
	}

	out := Manifest{} //nolint:exhaustruct // unmarshal
	if err := json.Unmarshal(data, &out); err != nil {
		return Manifest{}, errors.Join(err, errInvalidManifestDocument)
	}
	if err := out.Validate(); err != nil {
		return Manifest{}, errors.Join(err, errInvalidManifestDocument)
	}

	return out, nil
}

// Encode serializes a manifest to JSON.
func (m Manifest) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
