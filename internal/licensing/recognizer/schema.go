package recognizer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/errors"
)

//go:embed schema.json
var fieldsSchemaJSON string

var fieldsSchema = jsonschema.MustCompileString("fields.schema.json", fieldsSchemaJSON)

const extractionPrompt = `You are reading an Israeli vehicle license (רישיון רכב).
Return ONLY a JSON object with exactly these keys:
  "licensePlate": the vehicle number, digits only (7 to 9 digits), no dashes
  "name": the owner's full name as printed
  "testDate": the date of the last annual test, formatted YYYY-MM-DD
  "licenseExpiry": the date the license is valid until, formatted YYYY-MM-DD
  "carType": the manufacturer and model
Use null for any field you cannot read. Do not add commentary.`

// parseFields turns a model reply into field-shaped values. The reply may be
// wrapped in a markdown fence. Anything that is not a JSON object matching
// the field schema is a parse error.
func parseFields(reply string) (map[string]string, error) {
	body := stripFences(reply)
	if body == "" {
		return nil, errors.Parse("model reply", fmt.Errorf("empty reply"))
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, errors.Parse("model reply", err)
	}
	if err := fieldsSchema.Validate(doc); err != nil {
		return nil, errors.Parse("model reply", err)
	}

	fields := make(map[string]string)
	for key, value := range doc.(map[string]any) {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fields, nil
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// emptyStructured is the degraded result for an unparseable reply: every
// field present and null.
func emptyStructured() map[string]string {
	return map[string]string{
		domain.FieldLicensePlate:  "",
		domain.FieldOwnerName:     "",
		domain.FieldTestDate:      "",
		domain.FieldLicenseExpiry: "",
		domain.FieldCarType:       "",
	}
}
