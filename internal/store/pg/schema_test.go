package pg

import (
	"errors"
	"testing"
)

func TestSchemaStatusErr(t *testing.T) {
	tests := []struct {
		name   string
		status SchemaStatus
		want   error
	}{
		{"missing", SchemaStatus{}, ErrSchemaMissing},
		{"dirty", SchemaStatus{Installed: true, Version: RequiredSchemaVersion, Dirty: true}, ErrSchemaDirty},
		{"outdated", SchemaStatus{Installed: true, Version: RequiredSchemaVersion - 1}, ErrSchemaOutdated},
		{"ahead", SchemaStatus{Installed: true, Version: RequiredSchemaVersion + 1}, ErrSchemaAhead},
		{"current", SchemaStatus{Installed: true, Version: RequiredSchemaVersion}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.status.Err()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Err() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}
