package models

import (
	"encoding/base64"
	"errors"
	"strings"
)

type PageInfo struct {
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
}

func EncodeCursor(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

func DecodeCursor(cursor string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", errors.New("invalid cursor")
	}
	return string(b), nil
}

// EncodeCompositeCursor packs the sort value and the row id into one opaque
// cursor so pagination stays stable when the sort column has duplicates.
func EncodeCompositeCursor(value string, id string) string {
	return base64.StdEncoding.EncodeToString([]byte(value + "|" + id))
}

func DecodeCompositeCursor(cursor string) (string, string, error) {
	b, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", errors.New("invalid cursor")
	}
	parts := strings.SplitN(string(b), "|", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid cursor")
	}
	return parts[0], parts[1], nil
}
