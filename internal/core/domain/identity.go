package domain

import (
	"fmt"

	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
)

// SubjectKind distinguishes the two kinds of application identity that can
// register with the relay. Buyers and shops live in separate namespaces, so a
// buyer and a shop may share the same raw id without colliding.
type SubjectKind string

const (
	KindBuyer SubjectKind = "buyer"
	KindShop  SubjectKind = "shop"
)

// Valid reports whether the kind is one of the known values.
func (k SubjectKind) Valid() bool {
	return k == KindBuyer || k == KindShop
}

// ParseSubjectKind converts a wire string into a SubjectKind.
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch SubjectKind(s) {
	case KindBuyer:
		return KindBuyer, nil
	case KindShop:
		return KindShop, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidSubjectKind, s)
	}
}

// Identity is an application-level reference used to address events,
// independent of any live connection.
type Identity struct {
	SubjectID string      `json:"subjectId"`
	Kind      SubjectKind `json:"subjectKind"`
}

// Validate checks that the identity is addressable.
func (i Identity) Validate() error {
	if i.SubjectID == "" {
		return apperrors.ErrRecipientRequired
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidSubjectKind, i.Kind)
	}
	return nil
}

func (i Identity) String() string {
	return string(i.Kind) + ":" + i.SubjectID
}
