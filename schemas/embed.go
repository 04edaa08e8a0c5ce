// Package schemas embeds the JSON Schemas that gate model output.
package schemas

import _ "embed"

// CandidateProfileFile is the schema file name, relative to this directory
const CandidateProfileFile = "candidate_profile.schema.json"

// CandidateProfile is the JSON Schema for analysis output
//
//go:embed candidate_profile.schema.json
var CandidateProfile string
