package store

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/intelligence"
)

func encodeServiceRecord(record *intelligence.ServiceRecord) (string, error) {
	b, err := json.Marshal(record.ServiceSettings)
	if err != nil {
		return "", errors.Wrapf(err, "could not serialize LLM service %s", record.ID)
	}
	return string(b), nil
}

func decodeServiceRecord(id string, payload string) (*intelligence.ServiceRecord, error) {
	var settings intelligence.ServiceSettings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, errors.Wrapf(err, "could not parse LLM service %s", id)
	}
	return &intelligence.ServiceRecord{ID: id, ServiceSettings: settings}, nil
}
