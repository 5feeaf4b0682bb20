package status

import (
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoStatuses signals a well-formed reply that carries no records. The
// mitigation layer serves such bodies instead of honest 404s, so callers
// treat it as retryable rather than "identifier not found".
var ErrNoStatuses = errors.New("status payload contains no records")

type wireRecord struct {
	StatusName   string `json:"StatusName"`
	StatusDateUF string `json:"StatusDateUF"`
}

type wireEnvelope struct {
	StatusInfo []wireRecord `json:"StatusInfo"`
}

// ParseStatusInfo decodes the upstream JSON body into ordered records.
// The source encodes timestamps as string epoch milliseconds.
func ParseStatusInfo(body []byte) ([]Record, error) {
	if len(body) == 0 {
		return nil, errors.New("empty status body")
	}
	var envelope wireEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode status payload: %w", err)
	}
	if len(envelope.StatusInfo) == 0 {
		return nil, ErrNoStatuses
	}
	records := make([]Record, 0, len(envelope.StatusInfo))
	for i, entry := range envelope.StatusInfo {
		millis, err := strconv.ParseInt(strings.TrimSpace(entry.StatusDateUF), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse StatusDateUF %q at index %d: %w", entry.StatusDateUF, i, err)
		}
		records = append(records, Record{
			Name:            entry.StatusName,
			TimestampMillis: millis,
		})
	}
	return records, nil
}

// EncodeStatusInfo renders records back into the upstream wire shape.
func EncodeStatusInfo(records []Record) ([]byte, error) {
	envelope := wireEnvelope{StatusInfo: make([]wireRecord, 0, len(records))}
	for _, r := range records {
		envelope.StatusInfo = append(envelope.StatusInfo, wireRecord{
			StatusName:   r.Name,
			StatusDateUF: strconv.FormatInt(r.TimestampMillis, 10),
		})
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode status payload: %w", err)
	}
	return data, nil
}

// BuildTargetURL assembles the status request URL for an identifier with a
// cache-busting nonce, matching the form the real site's frontend issues:
// sessionId first, then the underscore nonce.
func BuildTargetURL(base, identifier string, nonce int64) string {
	return fmt.Sprintf("%s?sessionId=%s&_=%d", base, url.QueryEscape(identifier), nonce)
}

// Nonce returns a random 13-digit cache buster.
func Nonce() int64 {
	const low = 1_000_000_000_000
	return low + rand.Int63n(9_000_000_000_000)
}
