package guardrail

import (
	"errors"
	"testing"
)

func TestIsSafeSelectRejectsNonSelectPrefix(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"UPDATE ds_active SET x = 1",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"describe ds_active",
		"; select * from ds_active",
	}
	for _, sql := range cases {
		if IsSafeSelect(sql) {
			t.Fatalf("IsSafeSelect(%q) = true, want false", sql)
		}
	}
}

func TestIsSafeSelectRejectsBlockedKeywordsAnywhere(t *testing.T) {
	cases := []string{
		"select * from ds_active; drop table ds_active",
		"select * from ds_active -- dropper",
		"SELECT 1 WHERE 'x' = 'pragma'",
		"select installment from ds_active",
		"select * from ds_active where note = 'copy'",
	}
	for _, sql := range cases {
		if IsSafeSelect(sql) {
			t.Fatalf("IsSafeSelect(%q) = true, want false (documented over-rejection)", sql)
		}
	}
}

func TestIsSafeSelectAcceptsPlainSelect(t *testing.T) {
	cases := []string{
		"select * from ds_active",
		"  SELECT id, name FROM ds_active WHERE id > 3  ",
		"Select count(*) from ds_active",
	}
	for _, sql := range cases {
		if !IsSafeSelect(sql) {
			t.Fatalf("IsSafeSelect(%q) = false, want true", sql)
		}
	}
}

func TestReferencesAllowedTable(t *testing.T) {
	if !ReferencesAllowedTable("select x from ds_active limit 5;", "ds_active") {
		t.Fatal("expected ds_active reference to pass")
	}
	if ReferencesAllowedTable("select x from other limit 5;", "ds_active") {
		t.Fatal("expected missing ds_active reference to fail")
	}
	if !ReferencesAllowedTable("SELECT x FROM DS_ACTIVE", "ds_active") {
		t.Fatal("expected case-insensitive match")
	}
}

func TestEnsureLimitAppendsDefault(t *testing.T) {
	got := EnsureLimit("select * from ds_active", 100)
	want := "select * from ds_active LIMIT 100;"
	if got != want {
		t.Fatalf("EnsureLimit() = %q, want %q", got, want)
	}
}

func TestEnsureLimitStripsTrailingSemicolon(t *testing.T) {
	got := EnsureLimit("select * from ds_active;", 100)
	if got != "select * from ds_active LIMIT 100;" {
		t.Fatalf("EnsureLimit() = %q", got)
	}
}

func TestEnsureLimitKeepsExistingLimit(t *testing.T) {
	cases := map[string]string{
		"select * from ds_active limit 5":   "select * from ds_active limit 5;",
		"select * from ds_active LIMIT 5;":  "select * from ds_active LIMIT 5;",
		"select * from ds_active Limit\t20": "select * from ds_active Limit\t20;",
	}
	for input, want := range cases {
		if got := EnsureLimit(input, 100); got != want {
			t.Fatalf("EnsureLimit(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEnsureLimitIgnoresLimitInsideIdentifier(t *testing.T) {
	got := EnsureLimit("select rate_limit_hits from ds_active", 100)
	if got != "select rate_limit_hits from ds_active LIMIT 100;" {
		t.Fatalf("EnsureLimit() = %q", got)
	}
}

func TestEnsureLimitIsIdempotent(t *testing.T) {
	first := EnsureLimit("select * from ds_active", 100)
	second := EnsureLimit(first, 100)
	if first != second {
		t.Fatalf("EnsureLimit() not idempotent: %q vs %q", first, second)
	}
}

func TestValidateAndNormalizeErrorKinds(t *testing.T) {
	_, err := ValidateAndNormalize("drop table ds_active", "ds_active", 100)
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != KindUnsafeSQL {
		t.Fatalf("error = %v, want unsafe_sql", err)
	}

	_, err = ValidateAndNormalize("select * from other", "ds_active", 100)
	if !errors.As(err, &gerr) || gerr.Kind != KindWrongTable {
		t.Fatalf("error = %v, want wrong_table", err)
	}
}

func TestValidateAndNormalizeHappyPath(t *testing.T) {
	got, err := ValidateAndNormalize("SELECT * FROM ds_active", "ds_active", 100)
	if err != nil {
		t.Fatalf("ValidateAndNormalize() error = %v", err)
	}
	if got != "SELECT * FROM ds_active LIMIT 100;" {
		t.Fatalf("ValidateAndNormalize() = %q", got)
	}
}
