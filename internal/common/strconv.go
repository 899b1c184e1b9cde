package common

import (
	"net/http"
	"strconv"
	"strings"
)

// AtoiDefault converts the provided string to an integer falling back to the default when parsing fails.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// QueryInt reads an integer query parameter, falling back to def.
func QueryInt(r *http.Request, key string, def int) int {
	return AtoiDefault(r.URL.Query().Get(key), def)
}
