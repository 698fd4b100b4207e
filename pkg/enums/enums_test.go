package enums

import "testing"

func TestParseRoleAcceptsLegacyCase(t *testing.T) {
	role, err := ParseRole("DRIVER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != RoleDriver {
		t.Fatalf("expected driver, got %s", role)
	}
	if _, err := ParseRole("courier"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if RoleAdmin.HasLadder() {
		t.Fatal("admins have no trip ladder")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	tests := map[OrderStatus]bool{
		OrderStatusPending:   false,
		OrderStatusInTransit: false,
		OrderStatusDelivered: true,
		OrderStatusCancelled: true,
	}
	for status, want := range tests {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s terminal=%v want %v", status, got, want)
		}
	}
	if _, err := ParseOrderStatus("picked_up"); err == nil {
		t.Fatal("expected picked_up to be rejected")
	}
}

func TestPackageTypeAndPriority(t *testing.T) {
	if !PackageTypeFragile.IsValid() {
		t.Fatal("fragile should be valid")
	}
	if PackageType("crate").IsValid() {
		t.Fatal("crate should be invalid")
	}
	if _, err := ParseOrderPriority("express"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCriteriaKindKnown(t *testing.T) {
	if !CriteriaXPEarned.IsKnown() {
		t.Fatal("XP_EARNED should be known")
	}
	if CriteriaKind("STREAK").IsKnown() {
		t.Fatal("STREAK should be unknown")
	}
}
