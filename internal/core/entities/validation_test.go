package entities

import "testing"

func TestValidationBuilder_Build(t *testing.T) {
	b := NewValidationBuilder()
	b.Errorf("VALID_ENTRYPOINTS", "entrypoint main -> /missing.html does not exist", map[string]any{"path": "/missing.html"})
	b.Warnf("EXTRA_ARCHIVE_ENTRY", "archive entry not in manifest", map[string]any{"path": "/extra.txt"})
	b.Infof("BUNDLE_SIZE", "bundle is small", nil)

	result := b.Build()
	if result.Valid {
		t.Fatal("expected Valid=false when an error message was added")
	}
	if len(result.Errors) != 1 || len(result.Warnings) != 1 || len(result.Info) != 1 {
		t.Fatalf("unexpected partition sizes: %+v", result)
	}
	if len(result.Messages) != 3 {
		t.Fatalf("expected 3 messages total, got %d", len(result.Messages))
	}
}

func TestValidationBuilder_Valid(t *testing.T) {
	b := NewValidationBuilder()
	b.Warnf("SOME_WARNING", "non-fatal", nil)
	result := b.Build()
	if !result.Valid {
		t.Fatal("warnings alone should not make a result invalid")
	}
}

func TestValidationBuilder_DedupesByCodeFilePathAndContextPath(t *testing.T) {
	b := NewValidationBuilder()
	ctx := map[string]any{"path": "/a.txt"}
	b.Errorf("DUP", "first", ctx)
	b.Errorf("DUP", "second (should be dropped)", ctx)
	b.Errorf("DUP", "different file", map[string]any{"path": "/b.txt"})

	result := b.Build()
	if len(result.Errors) != 2 {
		t.Fatalf("expected de-duplication to leave 2 distinct errors, got %d: %+v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Message != "first" {
		t.Errorf("expected first occurrence to win, got %q", result.Errors[0].Message)
	}
}
