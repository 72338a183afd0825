package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FailureList holds the failure messages of an execution, each prefixed with its error kind.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	b, err := scanBytes(value, "FailureList")
	if err != nil {
		return err
	}
	*fl = make(FailureList, 0)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

func (fl FailureList) contains(msg string) bool {
	for _, existing := range fl {
		if existing == msg {
			return true
		}
	}
	return false
}
