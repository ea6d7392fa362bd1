package domain

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{" Moderator ", RoleModerator, false},
		{"ADMIN", RoleAdmin, false},
		{"", RoleUser, false},
		{"superuser", "", true},
	}
	for _, tc := range tests {
		got, err := ParseRole(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseRole(%q) err = %v; wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Fatalf("%q should be valid", r)
		}
	}
	if Role("root").Valid() {
		t.Fatalf("root must not be valid")
	}
}
