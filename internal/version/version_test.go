package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Dirty = v, c, d }(Version, Commit, Dirty)

	cases := []struct {
		version, commit, dirty, want string
	}{
		{"", "", "", "dev"},
		{"", "abc123", "clean", "dev-abc123"},
		{"", "abc123", "dirty", "dev-abc123*"},
		{"v1.4.0", "abc123", "dirty", "v1.4.0"},
	}
	for _, tc := range cases {
		Version, Commit, Dirty = tc.version, tc.commit, tc.dirty
		if got := String(); got != tc.want {
			t.Fatalf("String() with %+v = %q, want %q", tc, got, tc.want)
		}
	}
}

func TestCurrent(t *testing.T) {
	defer func(v string) { Version = v }(Version)
	Version = "v2.0.0"
	info := Current()
	if info.Version != "v2.0.0" {
		t.Fatalf("Current().Version = %q", info.Version)
	}
	if UserAgent() != "bdsgp-directory/v2.0.0" {
		t.Fatalf("UserAgent() = %q", UserAgent())
	}
}
