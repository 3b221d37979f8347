package evaluation

import "testing"

func TestNumericComparisons(t *testing.T) {
	if !Numeric("gt", 5, 3) {
		t.Fatalf("expected 5 > 3")
	}
	if Numeric("gt", "not_a_number", 3) {
		t.Fatalf("expected a non-numeric operand to report false")
	}
	if !Numeric("lte", "3", float64(3)) {
		t.Fatalf("expected numeric strings to coerce and compare equal")
	}
}

func TestVersionComparisonsIgnoreSuffixes(t *testing.T) {
	if !Version("gt", "1.2.0", "1.1.9") {
		t.Fatalf("expected 1.2.0 > 1.1.9")
	}
	if !Version("eq", "1.0.0-beta", "1.0.0") {
		t.Fatalf("expected prerelease suffixes to be ignored for equality")
	}
	if Version("gt", "not.a.version", "1.0.0") {
		t.Fatalf("expected an unparsable version to report false")
	}
}

func TestStringArrayAnyNoneCaseSensitivity(t *testing.T) {
	targets := []string{"US", "CA"}
	if !StringArray("any", "us", targets, false) {
		t.Fatalf("expected a case-insensitive match")
	}
	if StringArray("any_case_sensitive", "us", targets, true) {
		t.Fatalf("expected a case-sensitive mismatch to fail")
	}
	if !StringArray("none", "JP", targets, false) {
		t.Fatalf("expected JP to not match {US,CA}")
	}
}

func TestStringArrayPrefixSuffixContains(t *testing.T) {
	if !StringArray("str_starts_with_any", "hello world", []string{"hello"}, false) {
		t.Fatalf("expected a prefix match")
	}
	if !StringArray("str_ends_with_any", "hello world", []string{"world"}, false) {
		t.Fatalf("expected a suffix match")
	}
	if !StringArray("str_contains_none", "hello world", []string{"goodbye"}, false) {
		t.Fatalf("expected str_contains_none to pass when no target is contained")
	}
}

func TestEqualTreatsNilAndEmptyStringAsAbsence(t *testing.T) {
	if !Equal("eq", nil, nil) {
		t.Fatalf("expected nil == nil target to be equal")
	}
	if !Equal("eq", "", nil) {
		t.Fatalf("expected an empty string to equal a nil target")
	}
	if !Equal("neq", "present", nil) {
		t.Fatalf("expected a non-empty value to not-equal a nil target")
	}
}

func TestTimeBeforeAfterOn(t *testing.T) {
	if !Time("before", "2020-01-01T00:00:00Z", "2021-01-01T00:00:00Z") {
		t.Fatalf("expected 2020 before 2021")
	}
	if !Time("after", "2021-01-01T00:00:00Z", "2020-01-01T00:00:00Z") {
		t.Fatalf("expected 2021 after 2020")
	}
	if !Time("on", "2021-06-15T08:00:00Z", "2021-06-15T23:00:00Z") {
		t.Fatalf("expected same-day timestamps to match 'on'")
	}
}

func TestParseTimeDistinguishesSecondsFromMillis(t *testing.T) {
	secs, ok := ParseTime(float64(1700000000))
	if !ok {
		t.Fatalf("expected unix seconds to parse")
	}
	millis, ok := ParseTime(float64(1700000000000))
	if !ok {
		t.Fatalf("expected unix millis to parse")
	}
	if !secs.Equal(millis) {
		t.Fatalf("expected the seconds and millis forms of the same instant to parse equal, got %v vs %v", secs, millis)
	}
}
