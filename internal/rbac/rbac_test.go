package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOwner, ActionView, true},
		{RoleOwner, ActionManage, true},
		{RoleEditor, ActionView, true},
		{RoleEditor, ActionChat, true},
		{RoleEditor, ActionEdit, true},
		{RoleEditor, ActionManage, false},
		{RoleViewer, ActionView, true},
		{RoleViewer, ActionChat, false},
		{RoleViewer, ActionEdit, false},
		{Role("unknown"), ActionView, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("editor") != RoleEditor {
		t.Error("editor should normalize to itself")
	}
	if Normalize("superuser") != RoleViewer {
		t.Error("unknown roles should fall back to viewer")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(AccountAdmin) {
		t.Error("admin account role should pass")
	}
	if IsAdmin(AccountUser) {
		t.Error("user account role should not pass")
	}
}
