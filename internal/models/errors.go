package models

import "errors"

// ErrAuditImmutable is returned when code attempts to rewrite audit history.
var ErrAuditImmutable = errors.New("models: audit entries are append-only")
