package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spesa/internal/core"
)

// maxBodyBytes bounds request bodies; a draft is a few hundred bytes.
const maxBodyBytes = 64 << 10

var errNotObject = errors.New("JSON body must be an object")

// readFields reads a JSON object or a form-encoded body into flat string
// values. JSON is recognised by its content type or by a leading brace;
// numbers and booleans are rendered the way a form would send them.
func readFields(r *http.Request) (url.Values, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return url.Values{}, nil
	}
	if !isJSON(r.Header.Get("Content-Type"), body) {
		return url.ParseQuery(string(body))
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	fields := make(url.Values, len(obj))
	for k, v := range obj {
		if s, ok := scalar(v); ok {
			fields.Set(k, s)
		}
	}
	return fields, nil
}

func isJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
		return true
	}
	return body[0] == '{'
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// field returns the named value with control characters and surrounding
// whitespace removed.
func field(fields url.Values, key string) string {
	return sanitizeInput(fields.Get(key))
}

// ParseDraft reads name, category, quantity and price from the body.
// On failure the returned response carries the user-facing message.
func ParseDraft(r *http.Request) (core.Draft, *ResponseBuilder) {
	fields, err := readFields(r)
	if err != nil {
		return core.Draft{}, BadRequestError("Invalid request format")
	}

	d, err := core.ParseDraft(field(fields, "name"), field(fields, "category"),
		field(fields, "quantity"), field(fields, "price"))
	if err != nil {
		return core.Draft{}, UnprocessableEntityError(core.ValidationMessage(err))
	}
	return d, nil
}

// ParseFilter reads the category and search term from the query string.
// Missing or unknown-but-"All" categories mean no restriction.
func ParseFilter(query url.Values) (core.Category, string, *ResponseBuilder) {
	term := sanitizeInput(query.Get("q"))
	raw := strings.TrimSpace(query.Get("category"))
	if raw == "" || strings.EqualFold(raw, string(core.CategoryAll)) {
		return core.CategoryAll, term, nil
	}
	c, err := core.ParseCategory(raw)
	if err != nil {
		return "", "", BadRequestError(core.ValidationMessage(err))
	}
	return c, term, nil
}
