package session

import "encoding/json"

// storageKey is the single well-known key under which the serialized
// record lives, in whichever tier is authoritative.
const storageKey = "oficaz.session"

// Store persists the session record across two storage tiers. The durable
// tier has lookup priority; writing to either tier clears the other so the
// two can never hold disagreeing copies.
type Store struct {
	durable   Storage
	ephemeral Storage
}

// NewStore creates a Store over a durable and an ephemeral tier.
func NewStore(durable, ephemeral Storage) *Store {
	return &Store{durable: durable, ephemeral: ephemeral}
}

// Save serializes the record into the durable tier when persistent is true,
// otherwise into the ephemeral tier. The other tier is cleared first.
func (s *Store) Save(rec *Record, persistent bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if persistent {
		if err := s.ephemeral.Delete(storageKey); err != nil {
			return err
		}
		return s.durable.Set(storageKey, string(data))
	}

	if err := s.durable.Delete(storageKey); err != nil {
		return err
	}
	return s.ephemeral.Set(storageKey, string(data))
}

// Load reads the durable tier first and falls back to the ephemeral tier.
// It reports which tier held the record so later saves target the same
// tier. Missing or corrupt data loads as no session, never as an error.
func (s *Store) Load() (rec *Record, persistent bool) {
	if data, ok := s.durable.Get(storageKey); ok {
		if rec := decodeRecord(data); rec != nil {
			return rec, true
		}
	}

	if data, ok := s.ephemeral.Get(storageKey); ok {
		if rec := decodeRecord(data); rec != nil {
			return rec, false
		}
	}

	return nil, false
}

// Clear removes the record from both tiers unconditionally.
func (s *Store) Clear() error {
	durableErr := s.durable.Delete(storageKey)
	ephemeralErr := s.ephemeral.Delete(storageKey)

	if durableErr != nil {
		return durableErr
	}
	return ephemeralErr
}

func decodeRecord(data string) *Record {
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil
	}
	if rec.AccessToken == "" && rec.RefreshToken == "" {
		return nil
	}

	return &rec
}
