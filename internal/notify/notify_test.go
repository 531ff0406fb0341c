package notify

import (
	"context"
	"testing"

	"github.com/wardboard/go-ward/internal/ward"
)

func TestMultiStampsOnce(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Multi(a, nil, b).Notify(context.Background(), Notice{Level: LevelError, Message: "Failed to load vitals"})

	na, nb := a.Notices(), b.Notices()
	if len(na) != 1 || len(nb) != 1 {
		t.Fatalf("fan-out delivered %d/%d notices", len(na), len(nb))
	}
	if na[0].ID == "" || na[0].ID != nb[0].ID {
		t.Fatalf("notice ids differ across sinks: %q vs %q", na[0].ID, nb[0].ID)
	}
	if a.Count(LevelError) != 1 || a.Count(LevelSuccess) != 0 {
		t.Fatal("Count by level is wrong")
	}
}

func TestErrorNoticeCarriesKind(t *testing.T) {
	n := Error("Patient not found", ward.NotFound("patient.load", "no row"))
	if n.Kind != "not_found" || n.Level != LevelError {
		t.Fatalf("notice = %+v", n)
	}
}

func TestToNotificationSeverity(t *testing.T) {
	cases := map[Level]ward.Severity{
		LevelError:   ward.SeverityCritical,
		LevelWarning: ward.SeverityWarning,
		LevelSuccess: ward.SeverityInfo,
	}
	for level, want := range cases {
		got := ToNotification(Notice{Level: level, Message: "m", Category: ward.NotificationMedication})
		if got.Severity != want {
			t.Errorf("%s -> %s, want %s", level, got.Severity, want)
		}
		if got.Type != ward.NotificationMedication || got.ID == "" || got.Timestamp.IsZero() {
			t.Errorf("incomplete notification %+v", got)
		}
	}
}
