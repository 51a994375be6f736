package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPriority_Valid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Priority("critical").Valid() {
		t.Error("unknown priority should be invalid")
	}
	if !PriorityUrgent.AtLeastHigh() || PriorityMedium.AtLeastHigh() {
		t.Error("AtLeastHigh mismatch")
	}
}

func TestNotification_Validate(t *testing.T) {
	n := &Notification{UserID: "u1", Type: "proposal", Title: "Vote open", Priority: PriorityHigh}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	bad := &Notification{Priority: "nope"}
	err := bad.Validate()
	if !IsDomainError(err, "MT-NTFY-4001") {
		t.Fatalf("Validate() = %v, want MT-NTFY-4001", err)
	}
	for _, want := range []string{"user_id", "type", "title", "priority"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestNotification_JSONOmitsUserID(t *testing.T) {
	n := Notification{
		ID:        "ntf_1",
		UserID:    "u1",
		Type:      "payment",
		Title:     "Paid",
		Message:   "KES 100 received",
		Priority:  PriorityMedium,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "u1") {
		t.Errorf("payload %s should not carry the user id", data)
	}
	if !strings.Contains(string(data), `"createdAt"`) {
		t.Errorf("payload %s should use createdAt", data)
	}
}

func TestNotification_Clone(t *testing.T) {
	n := &Notification{ID: "ntf_1", Metadata: map[string]any{"amount": 10}}
	c := n.Clone()
	c.Metadata["amount"] = 20
	if n.Metadata["amount"] != 10 {
		t.Error("Clone should copy metadata")
	}
}

func TestNewNotificationID_Ordered(t *testing.T) {
	at := time.Now()
	prev := ""
	for i := 0; i < 50; i++ {
		id, err := NewNotificationID(at)
		if err != nil {
			t.Fatalf("NewNotificationID: %v", err)
		}
		if !strings.HasPrefix(id, NotificationIDPrefix) {
			t.Fatalf("id %q missing prefix", id)
		}
		if prev != "" && id <= prev {
			t.Fatalf("id %q not after %q", id, prev)
		}
		prev = id
	}
}
