package registry

import (
	"testing"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/shelldialect"
)

func TestValidateName(t *testing.T) {
	valid := []string{"ab", "proj-d", "a1", "build-server-2"}
	for _, n := range valid {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", n, err)
		}
	}

	invalid := []string{"A", "a", "-ab", "ab-", "123", "Ab1", "", "a_b"}
	for _, n := range invalid {
		if err := ValidateName(n); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", n)
		}
	}
}

func TestAddDuplicateNameConflict(t *testing.T) {
	r := New()
	if _, err := r.Add(9001, "proj-d", "abcd1234", shelldialect.Bash, false); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := r.Add(9002, "proj-d", "deadbeef", shelldialect.Bash, false)
	if err == nil {
		t.Fatalf("expected NameTaken conflict, got nil")
	}
	var appErr *apperror.Error
	if !asAppError(err, &appErr) || appErr.Kind != apperror.KindConflict {
		t.Fatalf("expected KindConflict, got %v", err)
	}
}

func TestAddDuplicatePortConflict(t *testing.T) {
	r := New()
	if _, err := r.Add(9001, "proj-d", "abcd1234", shelldialect.Bash, false); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := r.Add(9001, "other-name", "deadbeef", shelldialect.Bash, false); err == nil {
		t.Fatalf("expected conflict on duplicate port")
	}
}

func TestRemoveKeepsIndicesInSync(t *testing.T) {
	r := New()
	if _, err := r.Add(9001, "proj-d", "abcd1234", shelldialect.Bash, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Remove(9001)

	if _, ok := r.Get(9001); ok {
		t.Fatalf("expected port removed")
	}
	if _, ok := r.GetByName("proj-d"); ok {
		t.Fatalf("expected name removed along with port (bijection invariant)")
	}

	// Name should now be reusable.
	if _, err := r.Add(9002, "proj-d", "deadbeef", shelldialect.Bash, false); err != nil {
		t.Fatalf("expected name reusable after removal: %v", err)
	}
}

func TestListSortedByPort(t *testing.T) {
	r := New()
	ports := []uint16{9003, 9001, 9002}
	for i, p := range ports {
		name := string(rune('a'+i)) + "b"
		if _, err := r.Add(p, name, "deadbeef", shelldialect.Bash, false); err != nil {
			t.Fatalf("add %d: %v", p, err)
		}
	}

	entries := r.ListSortedByPort()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Port >= entries[i].Port {
			t.Fatalf("entries not sorted: %v", entries)
		}
	}
}

func TestCleanupIdleRespectsEligibility(t *testing.T) {
	r := New()
	if _, err := r.Add(9001, "proj-d", "abcd1234", shelldialect.Bash, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed := r.CleanupIdle(-1, func(port uint16) bool { return false })
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed when ineligible, got %v", removed)
	}
	if r.Len() != 1 {
		t.Fatalf("expected entry retained")
	}

	removed = r.CleanupIdle(-1, func(port uint16) bool { return true })
	if len(removed) != 1 || removed[0] != 9001 {
		t.Fatalf("expected port 9001 removed, got %v", removed)
	}
	if r.Len() != 0 {
		t.Fatalf("expected registry empty after cleanup")
	}
}

func asAppError(err error, target **apperror.Error) bool {
	ae, ok := err.(*apperror.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}
