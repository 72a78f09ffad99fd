package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jobdeck/entitle/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"ExportID", id.NewExportID, "exp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixJob)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixJob {
		t.Errorf("expected prefix %q, got %q", id.PrefixJob, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"JobID", id.NewJobID, id.ParseJobID},
		{"ExportID", id.NewExportID, id.ParseExportID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	jobID := id.NewJobID()

	if _, err := id.ParseExportID(jobID.String()); err == nil {
		t.Error("expected error parsing job ID as export ID")
	}
	if _, err := id.ParseJobID(id.NewExportID().String()); err == nil {
		t.Error("expected error parsing export ID as job ID")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Garbage", "not-a-typeid"},
		{"BadSuffix", "job_!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID

	if !nilID.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", nilID.String())
	}
	if nilID.Prefix() != "" {
		t.Errorf("nil ID Prefix() = %q, want empty", nilID.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type doc struct {
		ID id.JobID `json:"id"`
	}

	original := doc{ID: id.NewJobID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded doc
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.ID.String() != original.ID.String() {
		t.Errorf("round-trip mismatch: %q != %q", decoded.ID.String(), original.ID.String())
	}
}

func TestSQLValueScan(t *testing.T) {
	original := id.NewJobID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", scanned.String(), original.String())
	}

	t.Run("NilValue", func(t *testing.T) {
		v, err := id.Nil.Value()
		if err != nil {
			t.Fatalf("Value failed: %v", err)
		}
		if v != nil {
			t.Errorf("nil ID Value() = %v, want nil", v)
		}
	})

	t.Run("ScanNil", func(t *testing.T) {
		var dst id.ID
		if err := dst.Scan(nil); err != nil {
			t.Fatalf("Scan(nil) failed: %v", err)
		}
		if !dst.IsNil() {
			t.Error("expected nil ID after Scan(nil)")
		}
	})

	t.Run("ScanUnsupported", func(t *testing.T) {
		var dst id.ID
		if err := dst.Scan(42); err == nil {
			t.Error("expected error scanning int")
		}
	})
}
