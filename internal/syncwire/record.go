package syncwire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one syncable row in wire form. The envelope fields (id,
// createdAt, updatedAt, _deleted) are extracted for merge decisions; every
// other field is carried opaquely so the engine replaces records wholesale
// without knowing their schema.
//
// Timestamps are Unix epoch milliseconds. TripItem records carry no
// updatedAt; Clock falls back to createdAt for them.
type Record struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
	Deleted   bool

	fields map[string]json.RawMessage
}

// NewRecord builds a record from an arbitrary JSON-marshalable value.
// The value must produce an object carrying at least an "id" field.
func NewRecord(v any) (*Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	r := &Record{}
	if err := r.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("record is not a JSON object: %w", err)
	}

	*r = Record{fields: fields}

	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return fmt.Errorf("invalid record id: %w", err)
		}
	}
	if r.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if raw, ok := fields["createdAt"]; ok {
		if err := json.Unmarshal(raw, &r.CreatedAt); err != nil {
			return fmt.Errorf("invalid createdAt: %w", err)
		}
	}
	if raw, ok := fields["updatedAt"]; ok {
		if err := json.Unmarshal(raw, &r.UpdatedAt); err != nil {
			return fmt.Errorf("invalid updatedAt: %w", err)
		}
	}
	if raw, ok := fields["_deleted"]; ok {
		if err := json.Unmarshal(raw, &r.Deleted); err != nil {
			return fmt.Errorf("invalid _deleted: %w", err)
		}
	}
	return nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.fields)+4)
	for k, v := range r.fields {
		out[k] = v
	}
	out["id"] = mustRaw(r.ID)
	out["createdAt"] = mustRaw(r.CreatedAt)
	if r.UpdatedAt != 0 {
		out["updatedAt"] = mustRaw(r.UpdatedAt)
	} else {
		delete(out, "updatedAt")
	}
	if r.Deleted {
		out["_deleted"] = mustRaw(true)
	} else {
		delete(out, "_deleted")
	}
	return json.Marshal(out)
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Clock returns the LWW timestamp: updatedAt, falling back to createdAt.
func (r *Record) Clock() int64 {
	if r.UpdatedAt != 0 {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// SetDeleted marks the record as a tombstone at the given timestamp.
func (r *Record) SetDeleted(ts int64) {
	r.Deleted = true
	r.UpdatedAt = ts
}

// Field returns the raw JSON value of a non-envelope field.
func (r *Record) Field(name string) (json.RawMessage, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// StringField returns a field decoded as a string. It returns "" when the
// field is absent, null, or not a string.
func (r *Record) StringField(name string) string {
	raw, ok := r.fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetField sets a non-envelope field to the JSON encoding of v.
func (r *Record) SetField(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal field %s: %w", name, err)
	}
	if r.fields == nil {
		r.fields = map[string]json.RawMessage{}
	}
	r.fields[name] = b
	return nil
}

// ClearField removes a non-envelope field.
func (r *Record) ClearField(name string) {
	delete(r.fields, name)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.fields = make(map[string]json.RawMessage, len(r.fields))
	for k, v := range r.fields {
		c.fields[k] = append(json.RawMessage(nil), v...)
	}
	return &c
}

// SameContent reports whether two records marshal to identical JSON. Used
// to decide whether an equal-timestamp pair is a real conflict or just the
// same write seen twice.
func (r *Record) SameContent(other *Record) bool {
	if other == nil {
		return false
	}
	a, err := r.MarshalJSON()
	if err != nil {
		return false
	}
	b, err := other.MarshalJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Decode unmarshals the full record into a typed value.
func (r *Record) Decode(v any) error {
	b, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
