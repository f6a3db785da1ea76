package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/services"
)

// BindNestedOrFlat decodes the request body into obj. A body of the form
// {"<key>": {...}} is unwrapped first; anything else is decoded as-is. Malformed
// JSON is reported as a validation error.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return &services.ValidationError{Message: "request body is required"}
	}

	var nestedMap map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &nestedMap); err == nil {
		if val, ok := nestedMap[key]; ok && len(val) > 0 && val[0] == '{' {
			bodyBytes = val
		}
	}

	if err := json.Unmarshal(bodyBytes, obj); err != nil {
		return &services.ValidationError{Message: "malformed JSON body: " + err.Error()}
	}
	return nil
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, &services.ValidationError{
			Message: "invalid input",
			Fields:  map[string]string{name: "must be a positive integer"},
		}
	}
	return uint(id), nil
}

// parseOptionalID reads a positive integer query parameter, nil when absent
func parseOptionalID(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil, &services.ValidationError{
			Message: "invalid input",
			Fields:  map[string]string{name: "must be a positive integer"},
		}
	}
	value := uint(id)
	return &value, nil
}

// splitQuery reads a comma-separated query parameter
func splitQuery(c *gin.Context, name string) []string {
	var out []string
	for _, item := range strings.Split(c.Query(name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
