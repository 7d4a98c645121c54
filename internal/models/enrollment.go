package models

// EnrollmentGroup is a symmetric key pair plus the id scope devices use to
// reach the provisioning endpoint it belongs to.
type EnrollmentGroup struct {
	ID           string `json:"id,omitempty"`
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
	IDScope      string `json:"idScope,omitempty"`
}

// EnrollmentKeys is a partial update of a key pair. Nil fields are left
// unchanged.
type EnrollmentKeys struct {
	PrimaryKey   *string `json:"primaryKey,omitempty"`
	SecondaryKey *string `json:"secondaryKey,omitempty"`
}

// Merge applies the non-nil keys of k onto e.
func (k EnrollmentKeys) Merge(e *EnrollmentGroup) {
	if k.PrimaryKey != nil {
		e.PrimaryKey = *k.PrimaryKey
	}
	if k.SecondaryKey != nil {
		e.SecondaryKey = *k.SecondaryKey
	}
}

// HasKeys reports whether both keys are set.
func (e *EnrollmentGroup) HasKeys() bool {
	return e != nil && e.PrimaryKey != "" && e.SecondaryKey != ""
}

// MatchesKey reports whether either key of e equals one of the given keys.
func (e EnrollmentGroup) MatchesKey(primary, secondary string) bool {
	for _, k := range []string{e.PrimaryKey, e.SecondaryKey} {
		if k != "" && (k == primary || k == secondary) {
			return true
		}
	}
	return false
}
