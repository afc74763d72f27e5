package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleStudent, "lecture:view", true},
		{RoleStudent, "lecture:manage", false},
		{RoleStudent, "comment:moderate", false},
		{RoleMaintainer, "question:manage", true},
		{RoleMaintainer, "session:run", true},
		{RoleAdmin, "anything:at-all", true},
		{"ghost", "lecture:view", false},
		{"", "lecture:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCheckerWildcardPrefix(t *testing.T) {
	c := NewChecker(map[string][]string{"curator": {"lecture:*"}})
	if !c.Has("curator", "lecture:manage") {
		t.Fatal("prefix wildcard did not match")
	}
	if c.Has("curator", "question:manage") {
		t.Fatal("prefix wildcard matched a different resource")
	}
}

func TestCheckerAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any(RoleStudent, "lecture:manage", "pin:write") {
		t.Fatal("Any missed a granted permission")
	}
	if c.Any(RoleStudent, "lecture:manage", "question:manage") {
		t.Fatal("Any granted an ungranted set")
	}
}

func probeHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func requestWithRole(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if role == "" {
		return req
	}
	return req.WithContext(WithRole(req.Context(), role))
}

func TestRequire(t *testing.T) {
	var hit bool
	handler := Require("lecture:manage")(probeHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(RoleStudent))
	if rec.Code != http.StatusForbidden || hit {
		t.Fatalf("student passed: status = %d hit = %v", rec.Code, hit)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(""))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing role: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(RoleMaintainer))
	if rec.Code != http.StatusNoContent || !hit {
		t.Fatalf("maintainer blocked: status = %d hit = %v", rec.Code, hit)
	}
}

func TestRequireAny(t *testing.T) {
	var hit bool
	handler := RequireAny("comment:moderate", "question:manage")(probeHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(RoleStudent))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student passed: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(RoleAdmin))
	if rec.Code != http.StatusNoContent || !hit {
		t.Fatalf("admin blocked: status = %d", rec.Code)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleStudent, RoleMaintainer, RoleAdmin} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	if ValidRole("superuser") {
		t.Error("unknown role accepted")
	}
}
